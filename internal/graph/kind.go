package graph

// Kind identifies the managed-service category of a node.
type Kind string

const (
	KindFrontend   Kind = "frontend-delivery"
	KindIdentity   Kind = "identity"
	KindAPIGateway Kind = "api-gateway"
	KindFunction   Kind = "function-compute"
	KindTable      Kind = "nosql-table"
	KindStorage    Kind = "object-storage"
	KindQueue      Kind = "queue"
	KindEventBus   Kind = "event-bus"
	KindTopic      Kind = "pub-sub-topic"
	KindWorkflow   Kind = "orchestration-workflow"
	KindCDN        Kind = "content-delivery"
	KindStream     Kind = "data-stream"
)

// Kinds returns every supported service kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindFrontend,
		KindIdentity,
		KindAPIGateway,
		KindFunction,
		KindTable,
		KindStorage,
		KindQueue,
		KindEventBus,
		KindTopic,
		KindWorkflow,
		KindCDN,
		KindStream,
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}
