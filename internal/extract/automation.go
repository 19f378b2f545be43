package extract

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

// NewAutomation builds the Automation extractor: REST list +
// per-item detail, classifying each step's activities via the activity-type
// table and emitting an automation_contains_<kind> edge per reference.
func NewAutomation(deps Deps) Extractor {
	kind := ratelimit.Kind("automation")
	return Pipeline{
		Type:   model.ObjectAutomation,
		Label:  "automations",
		Caches: []cache.Kind{cache.KindFolderAutomation, cache.KindQueryByID, cache.KindScriptByID, cache.KindEmailByID},

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.REST.Paginate(ctx, resttransport.PaginateOptions{
				Kind:     kind,
				Path:     "/automation/v1/automations",
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
			id := stringField(raw, "id", "ObjectID")
			if opts.IncludeDetails && id != "" {
				res, err := deps.REST.Do(ctx, kind, "GET", "/automation/v1/automations/"+id, nil, nil)
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
				if bc, err := deps.Cache.GetBreadcrumb(ctx, cache.KindFolderAutomation, folderID); err == nil {
					raw["_folderPath"] = bc.Path
				}
			}
			resolveActivityNames(ctx, deps, raw)
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := stringField(raw, "id", "ObjectID")
			name := stringField(raw, "name")
			obj := model.Object{
				ID:           id,
				Type:         model.ObjectAutomation,
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
			stepCount := 0
			activityCount := 0
			for _, stepRaw := range sliceField(raw, "steps") {
				step := asRawItem(stepRaw)
				if step == nil {
					continue
				}
				stepCount++
				for _, actRaw := range sliceField(step, "activities") {
					act := asRawItem(actRaw)
					if act == nil {
						continue
					}
					activityCount++
					edges = append(edges, automationActivityEdge(id, name, act)...)
				}
			}
			obj.Attributes["stepCount"] = stepCount
			obj.Attributes["activityCount"] = activityCount
			return obj, edges, nil
		},
	}
}

// resolveActivityNames fills in display names for activity references the
// list/detail payloads leave anonymous, using the definition lookup caches.
// A cache miss leaves the name empty; the edge still carries the id.
func resolveActivityNames(ctx context.Context, deps Deps, raw RawItem) {
	for _, stepRaw := range sliceField(raw, "steps") {
		step := asRawItem(stepRaw)
		if step == nil {
			continue
		}
		for _, actRaw := range sliceField(step, "activities") {
			act := asRawItem(actRaw)
			if act == nil || stringField(act, "name", "targetName") != "" {
				continue
			}
			refID := stringField(act, "activityObjectId", "targetId", "definitionId")
			if refID == "" {
				continue
			}
			typeID := 0
			if v, ok := act["objectTypeId"].(float64); ok {
				typeID = int(v)
			}
			var lookupKind cache.Kind
			switch ClassifyActivity(typeID) {
			case ActivityQuery:
				lookupKind = cache.KindQueryByID
			case ActivityScript:
				lookupKind = cache.KindScriptByID
			case ActivityEmail:
				lookupKind = cache.KindEmailByID
			default:
				continue
			}
			if n := lookupName(ctx, deps.Cache, lookupKind, refID); n != "" {
				act["_resolvedName"] = n
			}
		}
	}
}

func automationActivityEdge(automationID, automationName string, act RawItem) []model.RelationshipEdge {
	typeID := 0
	if v, ok := act["objectTypeId"]; ok {
		if f, ok := v.(float64); ok {
			typeID = int(f)
		}
	}
	actKind := ClassifyActivity(typeID)
	refID := stringField(act, "activityObjectId", "targetId", "definitionId")
	refName := stringField(act, "name", "targetName", "_resolvedName")
	if refID == "" {
		return nil
	}

	edgeKind := edgeKindForActivity(actKind)
	targetType, ok := targetObjectType(actKind)
	if !ok {
		targetType = model.ObjectType(actKind)
	}

	return []model.RelationshipEdge{{
		SourceType: model.ObjectAutomation,
		SourceID:   automationID,
		SourceName: automationName,
		Kind:       edgeKind,
		TargetType: targetType,
		TargetID:   refID,
		TargetName: refName,
	}}
}
