package lists

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/storage"
)

// Template is the name and taxonomy a new list of a given type starts with.
type Template struct {
	Name       string
	Categories []string
}

var templateNames = map[string]string{
	categorize.TypeShopping:    "Shopping List",
	categorize.TypeTodo:        "To-Do List",
	categorize.TypePunchList:   "Punch List",
	categorize.TypeWaitingList: "Waiting List",
}

// TemplateFor returns the template for listType. Unknown types get a
// title-cased name and a single "General" category.
func TemplateFor(listType string) Template {
	name, ok := templateNames[listType]
	if !ok {
		words := strings.Fields(strings.ReplaceAll(listType, "_", " "))
		for i, w := range words {
			words[i] = capitalize(w)
		}
		name = strings.Join(append(words, "List"), " ")
	}
	return Template{Name: name, Categories: categorize.Taxonomy(listType)}
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// nameHints are substrings of a list name that suggest its type.
var nameHints = map[string][]string{
	categorize.TypeShopping:    {"shop", "grocer", "food"},
	categorize.TypeTodo:        {"todo", "to-do", "to do", "task"},
	categorize.TypePunchList:   {"punch", "repair", "fix"},
	categorize.TypeWaitingList: {"wait"},
}

// SelectList picks the list of the given type a new item should go to: the
// first whose name suggests the type, otherwise the first of that type.
// lists is expected in creation order.
func SelectList(lists []storage.SmartList, listType string) (storage.SmartList, bool) {
	var first *storage.SmartList
	for i := range lists {
		l := &lists[i]
		if l.Type != listType {
			continue
		}
		if containsAny(strings.ToLower(l.Name), nameHints[listType]) {
			return *l, true
		}
		if first == nil {
			first = l
		}
	}
	if first == nil {
		return storage.SmartList{}, false
	}
	return *first, true
}
