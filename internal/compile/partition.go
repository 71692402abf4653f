package compile

import "github.com/archon-io/archon/internal/graph"

// DefaultPartitionThreshold is the compiled-resource count above which a
// single template is split into category stacks, staying well under
// typical per-template resource ceilings.
const DefaultPartitionThreshold = 15

// Category names one partition stack.
type Category string

const (
	CategoryData     Category = "data"
	CategoryCompute  Category = "compute"
	CategoryDelivery Category = "delivery"
)

// Group is one partition: a named category with a dependency-respecting,
// order-preserving subset of the compiled specs.
type Group struct {
	Category Category
	Specs    []*ResourceSpec
}

// kindCategories assigns every service kind to a partition category.
var kindCategories = map[graph.Kind]Category{
	graph.KindTable:   CategoryData,
	graph.KindStorage: CategoryData,

	graph.KindFunction: CategoryCompute,
	graph.KindQueue:    CategoryCompute,
	graph.KindEventBus: CategoryCompute,
	graph.KindTopic:    CategoryCompute,
	graph.KindWorkflow: CategoryCompute,
	graph.KindStream:   CategoryCompute,

	graph.KindFrontend:   CategoryDelivery,
	graph.KindCDN:        CategoryDelivery,
	graph.KindIdentity:   CategoryDelivery,
	graph.KindAPIGateway: CategoryDelivery,
}

// CategoryOf returns the partition category for a kind.
func CategoryOf(kind graph.Kind) Category {
	return kindCategories[kind]
}

// Partition splits specs into category groups when their count exceeds
// threshold; below or at the threshold it returns nil and the caller
// renders a single stack. Specs keep their relative order inside each
// group, and grants crossing groups stay on their owning spec. The
// renderers emit those as explicit cross-stack references, so no
// permission relationship is ever dropped by partitioning.
func Partition(specs []*ResourceSpec, threshold int) []Group {
	if threshold <= 0 {
		threshold = DefaultPartitionThreshold
	}
	if len(specs) <= threshold {
		return nil
	}

	buckets := map[Category][]*ResourceSpec{}
	for _, s := range specs {
		cat := CategoryOf(s.Kind)
		buckets[cat] = append(buckets[cat], s)
	}

	var groups []Group
	for _, cat := range []Category{CategoryData, CategoryCompute, CategoryDelivery} {
		if len(buckets[cat]) > 0 {
			groups = append(groups, Group{Category: cat, Specs: buckets[cat]})
		}
	}
	return groups
}

// GroupOf returns the category containing the named spec, for resolving
// cross-group references during rendering.
func GroupOf(groups []Group, name string) (Category, bool) {
	for _, grp := range groups {
		for _, s := range grp.Specs {
			if s.Name == name {
				return grp.Category, true
			}
		}
	}
	return "", false
}
