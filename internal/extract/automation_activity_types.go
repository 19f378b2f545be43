package extract

import "github.com/R3E-Network/sfmc-inv2/internal/model"

// ActivityKind names an automation step activity's classified type. Kept
// as a value type rather than an int constant so the lookup table below
// can be swapped without touching call sites.
type ActivityKind string

const (
	ActivityQuery              ActivityKind = "QueryActivity"
	ActivityDataFactoryUtility ActivityKind = "DataFactoryUtility"
	ActivityImport             ActivityKind = "ImportActivity"
	ActivityScript             ActivityKind = "ScriptActivity"
	ActivityFilter             ActivityKind = "FilterActivity"
	ActivityEmail              ActivityKind = "EMAILV2"
	ActivityFireAutomation     ActivityKind = "FireAutomation"
	ActivityRefreshGroup       ActivityKind = "RefreshGroup"
	ActivityDataExtract        ActivityKind = "DataExtract"
	ActivityFileTransfer       ActivityKind = "FileTransfer"
	ActivityWait               ActivityKind = "Wait"
	ActivityVerification       ActivityKind = "Verification"
	ActivityReportDefinition   ActivityKind = "ReportDefinition"
	ActivityAudienceBuilder    ActivityKind = "AudienceBuilder"
	ActivityRESTCall           ActivityKind = "RESTCall"
	ActivityCloudPage          ActivityKind = "CloudPageActivity"
	ActivityPushNotification   ActivityKind = "PushNotification"
	ActivitySMS                ActivityKind = "SMSActivity"
	ActivityTypification       ActivityKind = "Typification"
	ActivityFireEvent          ActivityKind = "FireEventActivity"
	ActivityUnknown            ActivityKind = "Unknown"
)

// activityTypeTableVersion identifies the revision of the vocabulary table.
// Bump it whenever a new platform code is added.
const activityTypeTableVersion = 1

// activityTypeTable maps the platform's numeric objectTypeId to a kind
// name, covering SFMC Automation Studio's common activity vocabulary; a
// code absent here classifies as ActivityUnknown rather than failing the
// extractor.
var activityTypeTable = map[int]ActivityKind{
	42:  ActivityQuery,
	53:  ActivityImport,
	43:  ActivityFilter,
	73:  ActivityFileTransfer,
	300: ActivityDataExtract,
	366: ActivityScript,
	423: ActivityVerification,
	425: ActivityDataFactoryUtility,
	467: ActivityFireAutomation,
	1:   ActivityEmail,
	724: ActivityWait,
	736: ActivityRefreshGroup,
	737: ActivityReportDefinition,
	738: ActivityAudienceBuilder,
	739: ActivityRESTCall,
	740: ActivityCloudPage,
	741: ActivityPushNotification,
	742: ActivitySMS,
	743: ActivityTypification,
	744: ActivityFireEvent,
}

// ClassifyActivity resolves a raw objectTypeId to its ActivityKind.
func ClassifyActivity(objectTypeID int) ActivityKind {
	if k, ok := activityTypeTable[objectTypeID]; ok {
		return k
	}
	return ActivityUnknown
}

// edgeKindForActivity maps an activity kind to the automation_contains_*
// edge it produces. Activity kinds with no dedicated edge kind
// fall back to the generic automation_contains_activity.
func edgeKindForActivity(kind ActivityKind) model.EdgeKind {
	switch kind {
	case ActivityQuery:
		return model.EdgeAutomationContainsQuery
	case ActivityScript:
		return model.EdgeAutomationContainsScript
	case ActivityImport:
		return model.EdgeAutomationContainsImport
	case ActivityDataExtract:
		return model.EdgeAutomationContainsDataExtract
	case ActivityFileTransfer:
		return model.EdgeAutomationContainsFileTransfer
	case ActivityFilter:
		return model.EdgeAutomationContainsFilter
	case ActivityEmail:
		return model.EdgeAutomationContainsEmail
	case ActivityFireAutomation:
		return model.EdgeAutomationContainsAutomation
	case ActivityRefreshGroup:
		return model.EdgeAutomationContainsRefreshGroup
	case ActivityWait:
		return model.EdgeAutomationContainsWait
	default:
		return model.EdgeAutomationContainsActivity
	}
}

// targetObjectType reports which Object type an activity kind's referenced
// definition belongs to, when that reference resolves to a first-class
// extracted object (used to set the edge's TargetType).
func targetObjectType(kind ActivityKind) (model.ObjectType, bool) {
	switch kind {
	case ActivityQuery:
		return model.ObjectQuery, true
	case ActivityScript:
		return model.ObjectScript, true
	case ActivityImport:
		return model.ObjectImport, true
	case ActivityDataExtract:
		return model.ObjectDataExtract, true
	case ActivityFileTransfer:
		return model.ObjectFileTransfer, true
	case ActivityFilter:
		return model.ObjectFilter, true
	case ActivityEmail:
		return model.ObjectEmail, true
	case ActivityFireAutomation:
		return model.ObjectAutomation, true
	default:
		return "", false
	}
}
