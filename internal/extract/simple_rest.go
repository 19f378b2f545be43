package extract

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

// simpleRESTSpec configures a REST-backed extractor whose objects emit no
// outgoing edges — the common "list + optional detail + folder breadcrumb"
// shape shared by script, import, data_extract, file_transfer, filter, and
// asset.
type simpleRESTSpec struct {
	Type        model.ObjectType
	Label       string
	ListPath    string
	DetailPath  string // path prefix; the item id is appended
	IDFields    []string
	FolderKind  cache.Kind
	FolderField string
	Style       resttransport.PageStyle
	// ContentFields are copied into Attributes only when opts.IncludeContent
	// is set.
	ContentFields []string
}

// newSimpleRESTExtractor builds a Pipeline from a simpleRESTSpec.
func newSimpleRESTExtractor(deps Deps, spec simpleRESTSpec) Extractor {
	kind := ratelimit.Kind(spec.Type)
	var caches []cache.Kind
	if spec.FolderKind != "" {
		caches = []cache.Kind{spec.FolderKind}
	}

	return Pipeline{
		Type:   spec.Type,
		Label:  spec.Label,
		Caches: caches,

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.REST.Paginate(ctx, resttransport.PaginateOptions{
				Kind:     kind,
				Path:     spec.ListPath,
				Style:    spec.Style,
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
			if opts.IncludeDetails && spec.DetailPath != "" {
				id := stringField(raw, spec.IDFields...)
				if id != "" {
					res, err := deps.REST.Do(ctx, kind, "GET", spec.DetailPath+id, nil, nil)
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
			}
			if spec.FolderKind != "" {
				if folderID := stringField(raw, spec.FolderField); folderID != "" {
					if bc, err := deps.Cache.GetBreadcrumb(ctx, spec.FolderKind, folderID); err == nil {
						raw["_folderPath"] = bc.Path
					}
				}
			}
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			attrs := map[string]interface{}{}
			if opts.IncludeContent {
				for _, f := range spec.ContentFields {
					if v, ok := raw[f]; ok {
						attrs[f] = v
					}
				}
			}
			obj := model.Object{
				ID:           stringField(raw, spec.IDFields...),
				Type:         spec.Type,
				CustomerKey:  stringField(raw, "customerKey", "key"),
				Name:         stringField(raw, "name"),
				FolderID:     stringField(raw, spec.FolderField),
				FolderPath:   stringField(raw, "_folderPath"),
				CreatedDate:  timeField(raw, "createdDate"),
				ModifiedDate: timeField(raw, "modifiedDate"),
				Status:       stringField(raw, "status"),
				Attributes:   attrs,
			}
			return obj, nil, nil
		},
	}
}

// scriptDERefPattern finds data extension names that appear as literal
// string arguments to the common SSJS lookup/init calls. Dynamic references
// (names built at runtime) are invisible to a static scan.
var scriptDERefPattern = regexp.MustCompile(`(?i)(?:DataExtension\.Init|Lookup(?:Rows|OrderedRows)?)\s*\(\s*"([^"]+)"`)

// NewScript builds the Script extractor. Script dependency
// extraction is known-incomplete: the static scan only sees literal string
// references, so they are counted under unresolved_script_references
// rather than emitted as edges.
func NewScript(deps Deps) Extractor {
	p := newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectScript, Label: "scripts",
		ListPath: "/automation/v1/scripts", DetailPath: "/automation/v1/scripts/",
		IDFields: []string{"ssjsActivityId", "id"}, FolderKind: cache.KindFolderScript, FolderField: "categoryId",
		ContentFields: []string{"script"},
	}).(Pipeline)

	unresolved := 0
	inner := p.Transform
	p.Transform = func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
		unresolved += len(scriptDERefPattern.FindAllString(stringField(raw, "script"), -1))
		return inner(raw, opts)
	}
	p.Finish = func(res *model.ExtractorResult) {
		res.Counters["unresolved_script_references"] = unresolved
	}
	return p
}

// NewImport builds the Import Definition extractor.
func NewImport(deps Deps) Extractor {
	return newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectImport, Label: "imports",
		ListPath: "/automation/v1/imports", DetailPath: "/automation/v1/imports/",
		IDFields: []string{"id"}, FolderKind: cache.KindFolderImport, FolderField: "categoryId",
	})
}

// NewDataExtract builds the Data Extract extractor.
func NewDataExtract(deps Deps) Extractor {
	return newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectDataExtract, Label: "data extracts",
		ListPath: "/automation/v1/dataextracts", DetailPath: "/automation/v1/dataextracts/",
		IDFields: []string{"id"}, FolderKind: cache.KindFolderDataExtract, FolderField: "categoryId",
	})
}

// NewFileTransfer builds the File Transfer extractor.
func NewFileTransfer(deps Deps) Extractor {
	return newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectFileTransfer, Label: "file transfers",
		ListPath: "/automation/v1/filetransfers", DetailPath: "/automation/v1/filetransfers/",
		IDFields: []string{"id"}, FolderKind: cache.KindFolderFileTransfer, FolderField: "categoryId",
	})
}

// NewFilter builds the Filter extractor.
func NewFilter(deps Deps) Extractor {
	return newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectFilter, Label: "filters",
		ListPath: "/automation/v1/filters", DetailPath: "/automation/v1/filters/",
		IDFields: []string{"id"}, FolderKind: cache.KindFolderFilter, FolderField: "categoryId",
	})
}

// NewAsset builds the Content Builder Asset extractor.
func NewAsset(deps Deps) Extractor {
	return newSimpleRESTExtractor(deps, simpleRESTSpec{
		Type: model.ObjectAsset, Label: "assets",
		ListPath: "/asset/v1/content/assets", DetailPath: "/asset/v1/content/assets/",
		IDFields: []string{"id"}, FolderKind: cache.KindFolderAsset, FolderField: "categoryId",
		ContentFields: []string{"content", "fileProperties"},
	})
}
