package nutrition

// Attribute keys of a flattened catalog record. Every other key is a measurement or a unit tag.
const (
	KeyCode            = "code"
	KeyProductName     = "product_name"
	KeyBrands          = "brands"
	KeyCategories      = "categories"
	KeyNutriscoreGrade = "nutriscore_grade"
	KeyIngredientsText = "ingredients_text"

	// UnitSuffix tags the unit of a measurement: energy_100g + energy_100g_unit.
	UnitSuffix = "_unit"
	// Per100gSuffix marks canonical nutrient columns.
	Per100gSuffix = "_100g"
	// DefaultNutrientUnit is the unit tag given to newly discovered nutrient rows.
	DefaultNutrientUnit = "per_100g"
)

// AttributeKeys lists the product attribute columns in output order.
var AttributeKeys = []string{
	KeyCode,
	KeyProductName,
	KeyBrands,
	KeyCategories,
	KeyNutriscoreGrade,
	KeyIngredientsText,
}

func IsAttributeKey(key string) bool {
	for _, k := range AttributeKeys {
		if k == key {
			return true
		}
	}
	return false
}

type ProductAttributes struct {
	Code            string
	Name            string
	Brand           string
	Category        string
	NutriscoreGrade string
	IngredientsText string
}

// Get returns the attribute stored under one of AttributeKeys.
func (p ProductAttributes) Get(key string) (string, bool) {
	switch key {
	case KeyCode:
		return p.Code, true
	case KeyProductName:
		return p.Name, true
	case KeyBrands:
		return p.Brand, true
	case KeyCategories:
		return p.Category, true
	case KeyNutriscoreGrade:
		return p.NutriscoreGrade, true
	case KeyIngredientsText:
		return p.IngredientsText, true
	default:
		return "", false
	}
}

// Measurement is one raw (field, value, unit) triple. A nil Value is a null.
type Measurement struct {
	Name  string
	Value *float64
	Unit  string
}

// FlattenedRecord is one product as produced by consolidation. Measurements keep source order.
type FlattenedRecord struct {
	Product      ProductAttributes
	Measurements []Measurement
}

type NutrientValue struct {
	Name  string
	Value *float64
}

// HarmonizedRecord carries nutrient values already expressed in their target unit.
// Names are normalized and unique within a record.
type HarmonizedRecord struct {
	Product   ProductAttributes
	Nutrients []NutrientValue
}

// Nutrient returns the value for name and whether the column is present at all.
func (r HarmonizedRecord) Nutrient(name string) (*float64, bool) {
	for _, n := range r.Nutrients {
		if n.Name == name {
			return n.Value, true
		}
	}
	return nil, false
}
