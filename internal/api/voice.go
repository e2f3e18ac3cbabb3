package api

import (
	"bytes"
	"net/http"
)

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.Speech.Transcribe(r.Context(), filename, bytes.NewReader(data))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *apiServer) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	audio, err := s.Speech.Speak(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}
