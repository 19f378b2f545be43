package model

// EdgeKind enumerates the relationship kinds the engine can emit.
type EdgeKind string

const (
	EdgeAutomationContainsQuery        EdgeKind = "automation_contains_query"
	EdgeAutomationContainsScript       EdgeKind = "automation_contains_script"
	EdgeAutomationContainsImport       EdgeKind = "automation_contains_import"
	EdgeAutomationContainsDataExtract  EdgeKind = "automation_contains_data_extract"
	EdgeAutomationContainsFileTransfer EdgeKind = "automation_contains_file_transfer"
	EdgeAutomationContainsFilter       EdgeKind = "automation_contains_filter"
	EdgeAutomationContainsEmail        EdgeKind = "automation_contains_email"
	EdgeAutomationContainsAutomation   EdgeKind = "automation_contains_automation"
	EdgeAutomationContainsRefreshGroup EdgeKind = "automation_contains_refresh_group"
	EdgeAutomationContainsWait         EdgeKind = "automation_contains_wait"
	EdgeAutomationContainsActivity     EdgeKind = "automation_contains_activity"

	EdgeQueryReadsDE  EdgeKind = "query_reads_de"
	EdgeQueryWritesDE EdgeKind = "query_writes_de"

	EdgeJourneyUsesEmail      EdgeKind = "journey_uses_email"
	EdgeJourneyUsesDE         EdgeKind = "journey_uses_de"
	EdgeJourneyUsesAutomation EdgeKind = "journey_uses_automation"
	EdgeJourneyUsesFilter     EdgeKind = "journey_uses_filter"
	EdgeJourneyUsesEvent      EdgeKind = "journey_uses_event"

	EdgeTriggeredSendUsesEmail             EdgeKind = "triggered_send_uses_email"
	EdgeTriggeredSendUsesList              EdgeKind = "triggered_send_uses_list"
	EdgeTriggeredSendUsesSenderProfile      EdgeKind = "triggered_send_uses_sender_profile"
	EdgeTriggeredSendUsesDeliveryProfile    EdgeKind = "triggered_send_uses_delivery_profile"
	EdgeTriggeredSendUsesSendClassification EdgeKind = "triggered_send_uses_send_classification"

	EdgeEventDefinitionUsesDE EdgeKind = "event_definition_uses_de"
)

// RelationshipEdge is a directed labeled edge between two object
// endpoints; both carry a display name for audit purposes.
type RelationshipEdge struct {
	SourceType ObjectType `json:"sourceType"`
	SourceID   string     `json:"sourceId"`
	SourceName string     `json:"sourceName,omitempty"`
	Kind       EdgeKind   `json:"kind"`
	TargetType ObjectType `json:"targetType"`
	TargetID   string     `json:"targetId"`
	TargetName string     `json:"targetName,omitempty"`
	Dangling   bool       `json:"dangling"`
}

// dedupeKey is the 5-tuple identity edges are deduplicated by.
type dedupeKey struct {
	srcType ObjectType
	srcID   string
	kind    EdgeKind
	dstType ObjectType
	dstID   string
}

func (e RelationshipEdge) dedupeKey() dedupeKey {
	return dedupeKey{e.SourceType, e.SourceID, e.Kind, e.TargetType, e.TargetID}
}

// SourceKey/TargetKey return the (type,id) identity of each endpoint.
func (e RelationshipEdge) SourceKey() ObjectKey { return ObjectKey{Type: e.SourceType, ID: e.SourceID} }
func (e RelationshipEdge) TargetKey() ObjectKey { return ObjectKey{Type: e.TargetType, ID: e.TargetID} }
