package extract

import (
	"context"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// NewDataExtension builds the Data Extension extractor: SOAP
// list via retrieveAll, per-DE field list fetched in parallel, breadcrumb
// from the DE folder cache. Emits no outgoing edges — a DE is an endpoint
// in most of the graph's edges, never a source.
func NewDataExtension(deps Deps) Extractor {
	return Pipeline{
		Type:   model.ObjectDataExtension,
		Label:  "data extensions",
		Caches: []cache.Kind{cache.KindFolderDataExtension},

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			props := []string{"ObjectID", "CustomerKey", "Name", "CategoryID", "CreatedDate", "ModifiedDate", "IsSendable"}
			err := deps.SOAP.RetrieveAll(ctx, "DataExtension", props, "", func(nodes []*soaptransport.Node) error {
				for _, n := range nodes {
					out = append(out, soapNodeToRaw(n))
				}
				return nil
			})
			return out, err
		},

		Enrich: func(ctx context.Context, raw RawItem, opts Options) (RawItem, error) {
			if opts.IncludeDetails {
				deID := stringField(raw, "CustomerKey", "ObjectID")
				fields, count, err := fetchDEFields(ctx, deps, deID)
				if err != nil {
					return raw, err
				}
				raw["_fields"] = fields
				raw["_fieldCount"] = count
			}
			if folderID := stringField(raw, "CategoryID"); folderID != "" {
				if bc, err := deps.Cache.GetBreadcrumb(ctx, cache.KindFolderDataExtension, folderID); err == nil {
					raw["_folderPath"] = bc.Path
				}
			}
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			obj := model.Object{
				ID:           stringField(raw, "ObjectID"),
				Type:         model.ObjectDataExtension,
				CustomerKey:  stringField(raw, "CustomerKey"),
				Name:         stringField(raw, "Name"),
				FolderID:     stringField(raw, "CategoryID"),
				FolderPath:   stringField(raw, "_folderPath"),
				CreatedDate:  timeField(raw, "CreatedDate"),
				ModifiedDate: timeField(raw, "ModifiedDate"),
				Status:       deSendableStatus(raw),
				Attributes: map[string]interface{}{
					"fieldCount": raw["_fieldCount"],
				},
			}
			return obj, nil, nil
		},
	}
}

func deSendableStatus(raw RawItem) string {
	if boolField(raw, "IsSendable") {
		return "Sendable"
	}
	return "Standard"
}

// fetchDEFields retrieves a single DE's field list via a scoped SOAP
// retrieveAll on DataExtensionField, bounded by the extractor's own
// per-item concurrency (the base pipeline's semaphore already bounds the
// number of concurrent Enrich calls, so no additional semaphore is needed
// here).
func fetchDEFields(ctx context.Context, deps Deps, deCustomerKey string) ([]string, int, error) {
	if deCustomerKey == "" {
		return nil, 0, nil
	}
	var names []string
	filter := `<Filter xsi:type="SimpleFilterPart"><Property>DataExtension.CustomerKey</Property><SimpleOperator>equals</SimpleOperator><Value>` + xmlValueEscaper.Replace(deCustomerKey) + `</Value></Filter>`
	err := deps.SOAP.RetrieveAll(ctx, "DataExtensionField", []string{"Name", "FieldType"}, filter, func(nodes []*soaptransport.Node) error {
		for _, n := range nodes {
			if name := n.Get("Name"); name != nil {
				names = append(names, name.Text)
			}
		}
		return nil
	})
	return names, len(names), err
}
