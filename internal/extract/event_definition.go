package extract

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

// NewEventDefinition builds the Event Definition extractor: REST
// list, emitting event_definition_uses_de where the event references a DE.
func NewEventDefinition(deps Deps) Extractor {
	kind := ratelimit.Kind("event_definition")
	return Pipeline{
		Type:  model.ObjectEventDefinition,
		Label: "event definitions",

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.REST.Paginate(ctx, resttransport.PaginateOptions{
				Kind:     kind,
				Path:     "/interaction/v1/eventDefinitions",
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

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := stringField(raw, "id", "eventDefinitionKey")
			name := stringField(raw, "name")
			obj := model.Object{
				ID:           id,
				Type:         model.ObjectEventDefinition,
				CustomerKey:  stringField(raw, "eventDefinitionKey"),
				Name:         name,
				CreatedDate:  timeField(raw, "createdDate"),
				ModifiedDate: timeField(raw, "modifiedDate"),
				Status:       stringField(raw, "status"),
				Attributes:   map[string]interface{}{"type": stringField(raw, "type")},
			}

			var edges []model.RelationshipEdge
			config := mapField(raw, "dataExtensionTrigger", "configuration")
			if deID := stringField(config, "dataExtensionId", "dataExtensionCustomerKey"); deID != "" {
				edges = append(edges, model.RelationshipEdge{
					SourceType: model.ObjectEventDefinition,
					SourceID:   id,
					SourceName: name,
					Kind:       model.EdgeEventDefinitionUsesDE,
					TargetType: model.ObjectDataExtension,
					TargetID:   deID,
				})
			}
			return obj, edges, nil
		},
	}
}
