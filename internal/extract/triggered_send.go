package extract

import (
	"context"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// NewTriggeredSend builds the Triggered Send extractor: SOAP
// retrieveAll, emitting edges to the email, list, sender profile, delivery
// profile, and send classification it references.
func NewTriggeredSend(deps Deps) Extractor {
	return Pipeline{
		Type:   model.ObjectTriggeredSend,
		Label:  "triggered sends",
		Caches: []cache.Kind{cache.KindFolderTriggeredSend, cache.KindEmailByID},

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			props := []string{
				"ObjectID", "CustomerKey", "Name", "TriggeredSendStatus",
				"CategoryID", "CreatedDate", "ModifiedDate",
				"Email.ID", "List.ID", "SenderProfile.CustomerKey",
				"DeliveryProfile.CustomerKey", "SendClassification.CustomerKey",
			}
			err := deps.SOAP.RetrieveAll(ctx, "TriggeredSendDefinition", props, "", func(nodes []*soaptransport.Node) error {
				for _, n := range nodes {
					raw := soapNodeToRaw(n)
					if email := n.Get("Email"); email != nil {
						raw["_emailID"] = textOfChild(email, "ID")
					}
					if list := n.Get("List"); list != nil {
						raw["_listID"] = textOfChild(list, "ID")
					}
					if sp := n.Get("SenderProfile"); sp != nil {
						raw["_senderProfileKey"] = textOfChild(sp, "CustomerKey")
					}
					if dp := n.Get("DeliveryProfile"); dp != nil {
						raw["_deliveryProfileKey"] = textOfChild(dp, "CustomerKey")
					}
					if sc := n.Get("SendClassification"); sc != nil {
						raw["_sendClassificationKey"] = textOfChild(sc, "CustomerKey")
					}
					out = append(out, raw)
				}
				return nil
			})
			return out, err
		},

		Enrich: func(ctx context.Context, raw RawItem, opts Options) (RawItem, error) {
			if folderID := stringField(raw, "CategoryID"); folderID != "" {
				if bc, err := deps.Cache.GetBreadcrumb(ctx, cache.KindFolderTriggeredSend, folderID); err == nil {
					raw["_folderPath"] = bc.Path
				}
			}
			if emailID := stringField(raw, "_emailID"); emailID != "" {
				if n := lookupName(ctx, deps.Cache, cache.KindEmailByID, emailID); n != "" {
					raw["_emailName"] = n
				}
			}
			return raw, nil
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := stringField(raw, "ObjectID")
			name := stringField(raw, "Name")
			obj := model.Object{
				ID:           id,
				Type:         model.ObjectTriggeredSend,
				CustomerKey:  stringField(raw, "CustomerKey"),
				Name:         name,
				FolderID:     stringField(raw, "CategoryID"),
				FolderPath:   stringField(raw, "_folderPath"),
				CreatedDate:  timeField(raw, "CreatedDate"),
				ModifiedDate: timeField(raw, "ModifiedDate"),
				Status:       stringField(raw, "TriggeredSendStatus"),
				Attributes:   map[string]interface{}{},
			}

			var edges []model.RelationshipEdge
			if v := stringField(raw, "_emailID"); v != "" {
				e := tsEdge(id, name, model.EdgeTriggeredSendUsesEmail, model.ObjectEmail, v)
				e.TargetName = stringField(raw, "_emailName")
				edges = append(edges, e)
			}
			if v := stringField(raw, "_listID"); v != "" {
				edges = append(edges, tsEdge(id, name, model.EdgeTriggeredSendUsesList, model.ObjectList, v))
			}
			if v := stringField(raw, "_senderProfileKey"); v != "" {
				edges = append(edges, tsEdge(id, name, model.EdgeTriggeredSendUsesSenderProfile, model.ObjectSenderProfile, v))
			}
			if v := stringField(raw, "_deliveryProfileKey"); v != "" {
				edges = append(edges, tsEdge(id, name, model.EdgeTriggeredSendUsesDeliveryProfile, model.ObjectDeliveryProfile, v))
			}
			if v := stringField(raw, "_sendClassificationKey"); v != "" {
				edges = append(edges, tsEdge(id, name, model.EdgeTriggeredSendUsesSendClassification, model.ObjectSendClassification, v))
			}
			return obj, edges, nil
		},
	}
}

func tsEdge(srcID, srcName string, kind model.EdgeKind, targetType model.ObjectType, targetID string) model.RelationshipEdge {
	return model.RelationshipEdge{
		SourceType: model.ObjectTriggeredSend,
		SourceID:   srcID,
		SourceName: srcName,
		Kind:       kind,
		TargetType: targetType,
		TargetID:   targetID,
	}
}

func textOfChild(n *soaptransport.Node, name string) string {
	if c := n.Get(name); c != nil {
		return c.Text
	}
	return ""
}
