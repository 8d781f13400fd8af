package migrate

import (
	"fmt"
	"sort"
	"sync"
)

// EntityKind identifies one of the supported record categories.
type EntityKind string

const (
	KindCustomer  EntityKind = "customer"
	KindInventory EntityKind = "inventory"
	KindSupplier  EntityKind = "supplier"
)

// EntityDefinition describes how one record category maps onto CSV columns.
type EntityDefinition struct {
	Kind  EntityKind
	Label string // Display name: "Customers"

	// RequiredColumns must all be present in the CSV header. Matching is
	// insensitive to case, underscores, and spaces ("Contact Info" matches
	// "contact_info").
	RequiredColumns []string

	// NameColumn holds the human display name used when describing
	// duplicates and inserted records.
	NameColumn string

	// IdentifierColumn is the secondary field used to describe a record
	// alongside its name (phone for customers, SKU for inventory).
	IdentifierColumn string
}

var (
	registry   = make(map[EntityKind]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the kind is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Kind))
	}
	registry[def.Kind] = def
}

// Lookup returns the definition for a kind.
// Returns false if the kind is unknown.
func Lookup(kind EntityKind) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// All returns every registered entity definition, sorted by kind.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

func init() {
	Register(EntityDefinition{
		Kind:             KindCustomer,
		Label:            "Customers",
		RequiredColumns:  []string{"name", "phone"},
		NameColumn:       "name",
		IdentifierColumn: "phone",
	})
	Register(EntityDefinition{
		Kind:             KindInventory,
		Label:            "Inventory",
		RequiredColumns:  []string{"name", "sku", "price", "selling_price", "initial_stock", "stock_quantity"},
		NameColumn:       "name",
		IdentifierColumn: "sku",
	})
	Register(EntityDefinition{
		Kind:             KindSupplier,
		Label:            "Suppliers",
		RequiredColumns:  []string{"name", "contact_info"},
		NameColumn:       "name",
		IdentifierColumn: "contact_info",
	})
}
