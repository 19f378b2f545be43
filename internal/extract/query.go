package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

// fromJoinPattern is an intentionally best-effort SQL reference scanner:
// a case-insensitive regex over FROM/JOIN clauses, not a SQL grammar. A future parser may replace it as long as its edge set is a
// superset of this one on the current fixtures.
var fromJoinPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([\[\]"` + "`" + `\w.]+)`)

// NewQuery builds the Query extractor: REST list + detail,
// regex-scanning the SQL text for referenced DEs and emitting
// query_reads_de / query_writes_de edges.
func NewQuery(deps Deps) Extractor {
	kind := ratelimit.Kind("query")
	return Pipeline{
		Type:   model.ObjectQuery,
		Label:  "queries",
		Caches: []cache.Kind{cache.KindFolderQuery, cache.KindDataExtensionByID},

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.REST.Paginate(ctx, resttransport.PaginateOptions{
				Kind:     kind,
				Path:     "/automation/v1/queries",
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
			id := stringField(raw, "queryDefinitionId", "id")
			if opts.IncludeDetails && id != "" {
				res, err := deps.REST.Do(ctx, kind, "GET", "/automation/v1/queries/"+id, nil, nil)
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
				if bc, err := deps.Cache.GetBreadcrumb(ctx, cache.KindFolderQuery, folderID); err == nil {
					raw["_folderPath"] = bc.Path
				}
			}
			if name, targetID := targetDEOf(raw); name == "" && targetID != "" {
				if n := lookupName(ctx, deps.Cache, cache.KindDataExtensionByID, targetID); n != "" {
					raw["_targetDEName"] = n
				}
			}
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := stringField(raw, "queryDefinitionId", "id")
			name := stringField(raw, "name")
			sql := stringField(raw, "queryText", "targetUpdateTypeName", "query")
			targetName, targetID := targetDEOf(raw)
			if targetName == "" {
				targetName = stringField(raw, "_targetDEName")
			}

			obj := model.Object{
				ID:           id,
				Type:         model.ObjectQuery,
				CustomerKey:  stringField(raw, "key", "customerKey"),
				Name:         name,
				FolderID:     stringField(raw, "categoryId"),
				FolderPath:   stringField(raw, "_folderPath"),
				CreatedDate:  timeField(raw, "createdDate"),
				ModifiedDate: timeField(raw, "modifiedDate"),
				Status:       stringField(raw, "status", "targetUpdateTypeName"),
				Attributes:   map[string]interface{}{"targetDataExtension": targetName},
			}
			if opts.IncludeContent {
				obj.Attributes["queryText"] = sql
			}

			refs := ExtractQueryReferences(sql)
			var edges []model.RelationshipEdge
			for _, ref := range refs {
				edges = append(edges, model.RelationshipEdge{
					SourceType: model.ObjectQuery,
					SourceID:   id,
					SourceName: name,
					Kind:       model.EdgeQueryReadsDE,
					TargetType: model.ObjectDataExtension,
					TargetID:   ref,
					TargetName: ref,
				})
			}
			if targetID != "" || targetName != "" {
				edges = append(edges, model.RelationshipEdge{
					SourceType: model.ObjectQuery,
					SourceID:   id,
					SourceName: name,
					Kind:       model.EdgeQueryWritesDE,
					TargetType: model.ObjectDataExtension,
					TargetID:   targetDEKey(targetID, targetName),
					TargetName: targetName,
				})
			}
			return obj, edges, nil
		},
	}
}

// targetDEOf reads the query's configured write target, which the platform
// represents either as a DataExtensionTarget object or a bare name field
// depending on endpoint version.
func targetDEOf(raw RawItem) (name, id string) {
	if target := mapField(raw, "targetObject", "dataExtensionTarget"); target != nil {
		return stringField(target, "name"), stringField(target, "id", "customerKey")
	}
	return stringField(raw, "targetName"), stringField(raw, "targetDataExtensionId")
}

func targetDEKey(id, name string) string {
	if id != "" {
		return id
	}
	return name
}

// systemNamePattern filters out references to system tables the platform
// exposes internally.
var systemNamePattern = regexp.MustCompile(`(?i)^(_|sys).*|^dual$`)

// ExtractQueryReferences scans SQL text for FROM/JOIN clauses and returns
// the distinct, non-system table names referenced, in first-seen order.
func ExtractQueryReferences(sql string) []string {
	if sql == "" {
		return nil
	}
	matches := fromJoinPattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		name := cleanIdentifier(m[1])
		if name == "" || systemNamePattern.MatchString(name) {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func cleanIdentifier(raw string) string {
	s := strings.Trim(raw, "[]\"`")
	if i := strings.Index(s, "."); i >= 0 {
		s = s[i+1:]
		s = strings.Trim(s, "[]\"`")
	}
	return strings.TrimSpace(s)
}
