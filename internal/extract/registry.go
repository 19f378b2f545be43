package extract

// Build constructs the extractor registered under kind, or returns
// ok=false for an unrecognized kind. kind strings match the ObjectType
// values used throughout config.ResolveKinds.
func Build(kind string, deps Deps) (Extractor, bool) {
	switch kind {
	case "automation":
		return NewAutomation(deps), true
	case "query":
		return NewQuery(deps), true
	case "script":
		return NewScript(deps), true
	case "import":
		return NewImport(deps), true
	case "data_extract":
		return NewDataExtract(deps), true
	case "file_transfer":
		return NewFileTransfer(deps), true
	case "filter":
		return NewFilter(deps), true
	case "data_extension":
		return NewDataExtension(deps), true
	case "email":
		return NewEmail(deps), true
	case "journey":
		return NewJourney(deps), true
	case "event_definition":
		return NewEventDefinition(deps), true
	case "triggered_send":
		return NewTriggeredSend(deps), true
	case "list":
		return NewList(deps), true
	case "asset":
		return NewAsset(deps), true
	case "folder":
		return NewFolder(deps), true
	case "sender_profile":
		return NewSenderProfile(deps), true
	case "delivery_profile":
		return NewDeliveryProfile(deps), true
	case "send_classification":
		return NewSendClassification(deps), true
	default:
		return nil, false
	}
}

// AllKinds lists every extractor kind this registry knows how to build,
// in the same order as config's "full" preset.
func AllKinds() []string {
	return []string{
		"automation", "query", "script", "import", "data_extract",
		"file_transfer", "filter", "data_extension", "email", "journey",
		"event_definition", "triggered_send", "list", "asset", "folder",
		"sender_profile", "delivery_profile", "send_classification",
	}
}
