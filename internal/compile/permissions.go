package compile

import "github.com/archon-io/archon/internal/graph"

// kindPair keys the edge-to-permission table by (source kind, target
// kind).
type kindPair struct {
	Source graph.Kind
	Target graph.Kind
}

// grantTable is the single source of truth for translating a graph edge
// into a permission grant. Renderers consume the resulting grants as-is
// and never derive their own wiring. Pairs absent from the table carry
// no permission but are still recorded as a dependency for ordering.
var grantTable = map[kindPair]Access{
	{graph.KindFunction, graph.KindTable}:    AccessReadWriteData,
	{graph.KindFunction, graph.KindStorage}:  AccessReadWriteObjects,
	{graph.KindFunction, graph.KindQueue}:    AccessSendMessages,
	{graph.KindFunction, graph.KindTopic}:    AccessPublish,
	{graph.KindFunction, graph.KindEventBus}: AccessPutEvents,
	{graph.KindFunction, graph.KindStream}:   AccessPutRecords,
	{graph.KindFunction, graph.KindWorkflow}: AccessStartExecution,

	{graph.KindAPIGateway, graph.KindFunction}: AccessInvoke,

	{graph.KindQueue, graph.KindFunction}:    AccessConsumeMessages,
	{graph.KindStream, graph.KindFunction}:   AccessConsumeMessages,
	{graph.KindEventBus, graph.KindFunction}: AccessRuleTarget,
	{graph.KindTopic, graph.KindFunction}:    AccessSubscribe,
	{graph.KindTopic, graph.KindQueue}:       AccessSubscribe,
	{graph.KindStorage, graph.KindFunction}:  AccessNotify,

	{graph.KindWorkflow, graph.KindFunction}: AccessInvoke,
	{graph.KindCDN, graph.KindStorage}:       AccessOriginRead,
}

// grantFor looks up the permission for an edge between two kinds.
func grantFor(source, target graph.Kind) (Access, bool) {
	access, ok := grantTable[kindPair{Source: source, Target: target}]
	return access, ok
}
