package categorize

import "strings"

// List types with a built-in taxonomy.
const (
	TypeShopping    = "shopping"
	TypeTodo        = "todo"
	TypePunchList   = "punch_list"
	TypeWaitingList = "waiting_list"
)

// ShoppingCategories is the fixed set the remote categorizer may answer with.
var ShoppingCategories = []string{
	"Produce", "Dairy", "Meat", "Bakery", "Frozen",
	"Beverages", "Household", "Snacks", "Pantry", "Other",
}

type rule struct {
	category string
	keywords []string
}

// dictionary is an ordered keyword table; the first rule with a keyword
// contained in the item name wins.
type dictionary struct {
	rules    []rule
	fallback string
}

var dictionaries = map[string]dictionary{
	TypeShopping: {
		rules: []rule{
			{"Frozen", []string{"frozen", "ice cream", "popsicle", "ice pop"}},
			{"Household", []string{"detergent", "soap", "paper towel", "toilet paper", "tissue", "trash bag", "sponge", "bleach", "cleaner", "foil", "battery", "batteries", "light bulb"}},
			{"Produce", []string{"apple", "banana", "lettuce", "tomato", "onion", "potato", "carrot", "fruit", "vegetable", "berr", "grape", "orange", "lemon", "lime", "avocado", "spinach", "pepper", "garlic", "melon", "cucumber", "broccoli", "celery", "mushroom", "kale"}},
			{"Dairy", []string{"milk", "cheese", "yogurt", "yoghurt", "butter", "cream", "egg"}},
			{"Meat", []string{"chicken", "beef", "pork", "turkey", "fish", "salmon", "tuna", "bacon", "sausage", "ham", "steak", "shrimp", "lamb"}},
			{"Bakery", []string{"bread", "bagel", "muffin", "croissant", "bun", "tortilla", "cake", "baguette", "pita"}},
			{"Beverages", []string{"juice", "soda", "water", "coffee", "tea", "beer", "wine", "lemonade", "kombucha"}},
			{"Snacks", []string{"chip", "cracker", "cookie", "chocolate", "candy", "popcorn", "pretzel", "nut", "almond", "granola bar"}},
			{"Pantry", []string{"rice", "pasta", "flour", "sugar", "salt", "oil", "cereal", "bean", "sauce", "soup", "oat", "spice", "honey", "vinegar", "ketchup", "mustard"}},
		},
		fallback: "Other",
	},
	TypePunchList: {
		rules: []rule{
			{"Plumbing", []string{"plumb", "pipe", "drain", "faucet", "toilet", "leak", "sink", "shower", "water heater"}},
			{"Electrical", []string{"electric", "outlet", "wiring", "wire", "switch", "light", "breaker", "fixture"}},
			{"HVAC", []string{"hvac", "furnace", "air condition", "a/c", "vent", "thermostat", "duct", "heat pump"}},
			{"Painting", []string{"paint", "primer", "touch up", "touch-up", "stain"}},
			{"Flooring", []string{"floor", "tile", "carpet", "grout", "hardwood", "laminate"}},
			{"Carpentry", []string{"door", "cabinet", "trim", "drywall", "shelf", "shelv", "baseboard", "deck", "wood"}},
			{"Exterior", []string{"roof", "gutter", "siding", "window", "fence", "landscap", "driveway", "porch"}},
		},
		fallback: "General",
	},
	TypeWaitingList: {
		rules: []rule{
			{"Packages", []string{"package", "delivery", "shipment", "parcel", "order", "amazon"}},
			{"Responses", []string{"reply", "response", "email", "call back", "callback", "answer", "hear back", "hear from"}},
			{"Payments", []string{"payment", "refund", "invoice", "check", "reimburse", "paycheck", "deposit"}},
			{"Documents", []string{"document", "contract", "form", "paperwork", "passport", "license", "permit", "certificate"}},
		},
		fallback: "Other",
	},
	TypeTodo: {
		rules: []rule{
			{"Work", []string{"meeting", "report", "email", "presentation", "project", "deadline", "client", "boss", "office"}},
			{"Errands", []string{"pick up", "drop off", "post office", "bank", "pharmacy", "store", "return", "dry clean", "groceries"}},
			{"Home", []string{"clean", "laundry", "dishes", "vacuum", "garden", "mow", "repair", "organize"}},
			{"Health", []string{"doctor", "dentist", "gym", "workout", "exercise", "medication", "prescription", "jog", "yoga"}},
		},
		fallback: "Personal",
	},
}

// unknownTypeCategory is the only category of list types without a dictionary.
const unknownTypeCategory = "General"

// Taxonomy returns the ordered category labels for a list type.
func Taxonomy(listType string) []string {
	if listType == TypeShopping {
		return append([]string(nil), ShoppingCategories...)
	}
	d, ok := dictionaries[listType]
	if !ok {
		return []string{unknownTypeCategory}
	}
	out := make([]string, 0, len(d.rules)+1)
	for _, r := range d.rules {
		out = append(out, r.category)
	}
	return append(out, d.fallback)
}

// InTaxonomy reports whether category (case-insensitive) belongs to the list
// type's taxonomy and returns its canonical spelling.
func InTaxonomy(listType, category string) (string, bool) {
	category = strings.TrimSpace(category)
	for _, c := range Taxonomy(listType) {
		if strings.EqualFold(c, category) {
			return c, true
		}
	}
	return "", false
}

// MatchKeyword runs the list type's dictionary over the item name.
func MatchKeyword(itemName, listType string) (string, bool) {
	d, ok := dictionaries[listType]
	if !ok {
		return "", false
	}
	name := strings.ToLower(itemName)
	for _, r := range d.rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.category, true
			}
		}
	}
	return "", false
}

// FallbackCategory is the local categorization: the keyword match, or the
// list type's default category.
func FallbackCategory(itemName, listType string) string {
	if c, ok := MatchKeyword(itemName, listType); ok {
		return c
	}
	if d, ok := dictionaries[listType]; ok {
		return d.fallback
	}
	return unknownTypeCategory
}
