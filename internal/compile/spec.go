// Package compile lowers an architecture graph into an ordered list of
// dialect-agnostic resource specs. All security hardening and permission
// wiring happens here; renderers only translate specs into syntax.
package compile

import "github.com/archon-io/archon/internal/graph"

// Access names a permission relationship between two resources.
type Access string

const (
	AccessReadWriteData    Access = "read_write_data"
	AccessReadWriteObjects Access = "read_write_objects"
	AccessSendMessages     Access = "send_messages"
	AccessPublish          Access = "publish"
	AccessPutEvents        Access = "put_events"
	AccessPutRecords       Access = "put_records"
	AccessStartExecution   Access = "start_execution"
	AccessInvoke           Access = "invoke"
	AccessConsumeMessages  Access = "consume_messages"
	AccessRuleTarget       Access = "rule_target"
	AccessSubscribe        Access = "subscribe"
	AccessNotify           Access = "notify"
	AccessOriginRead       Access = "origin_read"
)

// Grant is a required permission from the owning resource to Target.
type Grant struct {
	Target string `json:"target"`
	Access Access `json:"access"`
}

// ResourceSpec is one compiled infrastructure resource, ready for any
// renderer. Never mutated after Compile returns it.
type ResourceSpec struct {
	Name       string         `json:"name"`
	Kind       graph.Kind     `json:"kind"`
	NodeID     string         `json:"node_id,omitempty"`
	Properties map[string]any `json:"properties"`
	Grants     []Grant        `json:"grants,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`

	// Authorizer is the logical name of the identity resource attached to
	// this API's integrations. Set only on api-gateway specs that have an
	// incoming identity edge.
	Authorizer string `json:"authorizer,omitempty"`
}

// Relation is one (source kind, target kind, access) triple, used to
// compare permission wiring across renderers and partitions.
type Relation struct {
	Source string
	Target string
	Access Access
}

// Relations flattens the grants of a spec list for comparison in tests
// and in the partition safety check.
func Relations(specs []*ResourceSpec) []Relation {
	var out []Relation
	for _, s := range specs {
		for _, g := range s.Grants {
			out = append(out, Relation{Source: s.Name, Target: g.Target, Access: g.Access})
		}
	}
	return out
}
