package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

// NewJourney builds the Journey extractor: REST list + detail,
// walking activities and triggers to emit journey_uses_* edges.
func NewJourney(deps Deps) Extractor {
	kind := ratelimit.Kind("journey")
	return Pipeline{
		Type:   model.ObjectJourney,
		Label:  "journeys",
		Caches: []cache.Kind{cache.KindFolderJourney, cache.KindEmailByID, cache.KindDataExtensionByID},

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.REST.Paginate(ctx, resttransport.PaginateOptions{
				Kind:     kind,
				Path:     "/interaction/v1/interactions",
				Style:    resttransport.PageStyleDollar,
				PageSize: opts.PageSize,
			}, func(raws []json.RawMessage) error {
				items, err := decodeRawItems(raws)
				if err != nil {
					return err
				}
				out = append(out, items...)
				return nil
			})
			return out, err
		},

		Enrich: func(ctx context.Context, raw RawItem, opts Options) (RawItem, error) {
			id := stringField(raw, "id")
			if opts.IncludeDetails && id != "" {
				res, err := deps.REST.Do(ctx, kind, "GET", "/interaction/v1/interactions/"+id, nil, nil)
				if err != nil {
					return raw, err
				}
				if res.OK {
					var detail RawItem
					if err := json.Unmarshal(res.Data, &detail); err == nil {
						mergeDetail(raw, detail)
					}
				}
			}
			if folderID := stringField(raw, "categoryId"); folderID != "" {
				if bc, err := deps.Cache.GetBreadcrumb(ctx, cache.KindFolderJourney, folderID); err == nil {
					raw["_folderPath"] = bc.Path
				}
			}
			for _, actRaw := range sliceField(raw, "activities") {
				act := asRawItem(actRaw)
				if act == nil {
					continue
				}
				args := mapField(act, "configurationArguments", "arguments")
				switch strings.ToUpper(stringField(act, "type", "eventDefinitionKey")) {
				case "EMAILV2", "EMAILSEND":
					if n := lookupName(ctx, deps.Cache, cache.KindEmailByID, stringField(args, "emailId", "emailID")); n != "" {
						act["_resolvedName"] = n
					}
				case "UPDATECONTACTDATA", "SALESFORCE_REST", "UPDATEDE", "TRANSACTIONALSEND":
					if n := lookupName(ctx, deps.Cache, cache.KindDataExtensionByID, stringField(args, "dataExtensionId", "targetDataExtensionId")); n != "" {
						act["_resolvedName"] = n
					}
				}
			}
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := stringField(raw, "id")
			name := stringField(raw, "name")
			obj := model.Object{
				ID:           id,
				Type:         model.ObjectJourney,
				CustomerKey:  stringField(raw, "key", "customerKey"),
				Name:         name,
				FolderID:     stringField(raw, "categoryId"),
				FolderPath:   stringField(raw, "_folderPath"),
				CreatedDate:  timeField(raw, "createdDate"),
				ModifiedDate: timeField(raw, "modifiedDate"),
				Status:       stringField(raw, "status"),
				Attributes:   map[string]interface{}{},
			}

			var edges []model.RelationshipEdge
			activityCount := 0
			for _, actRaw := range sliceField(raw, "activities") {
				act := asRawItem(actRaw)
				if act == nil {
					continue
				}
				activityCount++
				edges = append(edges, journeyActivityEdges(id, name, act)...)
			}
			for _, trigRaw := range sliceField(raw, "triggers") {
				trig := asRawItem(trigRaw)
				if trig == nil {
					continue
				}
				if e, ok := journeyTriggerEdge(id, name, trig); ok {
					edges = append(edges, e)
				}
			}
			obj.Attributes["activityCount"] = activityCount
			return obj, edges, nil
		},
	}
}

// journeyActivityEdges classifies the activity "type" strings Journey
// Builder uses (a distinct vocabulary from Automation Studio's numeric
// objectTypeId) and emits the matching journey_uses_* edge.
func journeyActivityEdges(journeyID, journeyName string, act RawItem) []model.RelationshipEdge {
	actType := strings.ToUpper(stringField(act, "type", "eventDefinitionKey"))
	args := mapField(act, "configurationArguments", "arguments")
	targetName := stringField(act, "_resolvedName")

	edge := func(kind model.EdgeKind, targetType model.ObjectType, targetID string) []model.RelationshipEdge {
		return []model.RelationshipEdge{{
			SourceType: model.ObjectJourney, SourceID: journeyID, SourceName: journeyName,
			Kind: kind, TargetType: targetType, TargetID: targetID, TargetName: targetName,
		}}
	}

	switch actType {
	case "EMAILV2", "EMAILSEND":
		if emailID := stringField(args, "emailId", "emailID"); emailID != "" {
			return edge(model.EdgeJourneyUsesEmail, model.ObjectEmail, emailID)
		}
	case "FIREAUTOMATION":
		if autoID := stringField(args, "automationId", "automationID"); autoID != "" {
			return edge(model.EdgeJourneyUsesAutomation, model.ObjectAutomation, autoID)
		}
	case "UPDATECONTACTDATA", "SALESFORCE_REST", "UPDATEDE", "TRANSACTIONALSEND":
		if deID := stringField(args, "dataExtensionId", "targetDataExtensionId"); deID != "" {
			return edge(model.EdgeJourneyUsesDE, model.ObjectDataExtension, deID)
		}
	case "FILTER", "ENGAGEMENTSPLIT":
		if filterID := stringField(args, "filterId", "filterDefinitionId"); filterID != "" {
			return edge(model.EdgeJourneyUsesFilter, model.ObjectFilter, filterID)
		}
	}
	return nil
}

func journeyTriggerEdge(journeyID, journeyName string, trig RawItem) (model.RelationshipEdge, bool) {
	meta := mapField(trig, "metaData", "configurationArguments")
	eventDefID := stringField(meta, "eventDefinitionId", "eventDefinitionKey")
	if eventDefID == "" {
		eventDefID = stringField(trig, "eventDefinitionId", "eventDefinitionKey")
	}
	if eventDefID == "" {
		return model.RelationshipEdge{}, false
	}
	return model.RelationshipEdge{
		SourceType: model.ObjectJourney, SourceID: journeyID, SourceName: journeyName,
		Kind: model.EdgeJourneyUsesEvent, TargetType: model.ObjectEventDefinition, TargetID: eventDefID,
	}, true
}
