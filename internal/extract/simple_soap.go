package extract

import (
	"context"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// simpleSOAPSpec configures a SOAP-backed extractor over a single retrieveAll
// object type whose objects emit no outgoing edges.
type simpleSOAPSpec struct {
	Type        model.ObjectType
	Label       string
	ObjectType  string
	Properties  []string
	IDField     string
	KeyField    string
	NameField   string
	StatusField string
}

func newSimpleSOAPExtractor(deps Deps, spec simpleSOAPSpec) Extractor {
	return Pipeline{
		Type:  spec.Type,
		Label: spec.Label,

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			err := deps.SOAP.RetrieveAll(ctx, spec.ObjectType, spec.Properties, "", func(nodes []*soaptransport.Node) error {
				for _, n := range nodes {
					out = append(out, soapNodeToRaw(n))
				}
				return nil
			})
			return out, err
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			obj := model.Object{
				ID:           stringField(raw, spec.IDField),
				Type:         spec.Type,
				CustomerKey:  stringField(raw, spec.KeyField),
				Name:         stringField(raw, spec.NameField),
				CreatedDate:  timeField(raw, "CreatedDate"),
				ModifiedDate: timeField(raw, "ModifiedDate"),
				Status:       stringField(raw, spec.StatusField),
				Attributes:   map[string]interface{}{},
			}
			return obj, nil, nil
		},
	}
}

// NewList builds the List extractor.
func NewList(deps Deps) Extractor {
	return newSimpleSOAPExtractor(deps, simpleSOAPSpec{
		Type: model.ObjectList, Label: "lists", ObjectType: "List",
		Properties: []string{"ID", "ObjectID", "ListName", "Description", "CreatedDate", "ModifiedDate", "Type"},
		IDField:    "ObjectID", KeyField: "ID", NameField: "ListName",
	})
}

// NewEmail builds the Email extractor.
func NewEmail(deps Deps) Extractor {
	return newSimpleSOAPExtractor(deps, simpleSOAPSpec{
		Type: model.ObjectEmail, Label: "emails", ObjectType: "Email",
		Properties: []string{"ID", "ObjectID", "CustomerKey", "Name", "Subject", "CreatedDate", "ModifiedDate"},
		IDField:    "ObjectID", KeyField: "CustomerKey", NameField: "Name",
	})
}

// NewSenderProfile builds the Sender Profile extractor.
func NewSenderProfile(deps Deps) Extractor {
	return newSimpleSOAPExtractor(deps, simpleSOAPSpec{
		Type: model.ObjectSenderProfile, Label: "sender profiles", ObjectType: "SenderProfile",
		Properties: []string{"ObjectID", "CustomerKey", "Name", "FromName", "FromAddress", "CreatedDate", "ModifiedDate"},
		IDField:    "ObjectID", KeyField: "CustomerKey", NameField: "Name",
	})
}

// NewDeliveryProfile builds the Delivery Profile extractor.
func NewDeliveryProfile(deps Deps) Extractor {
	return newSimpleSOAPExtractor(deps, simpleSOAPSpec{
		Type: model.ObjectDeliveryProfile, Label: "delivery profiles", ObjectType: "DeliveryProfile",
		Properties: []string{"ObjectID", "CustomerKey", "Name", "SourceAddressType", "CreatedDate", "ModifiedDate"},
		IDField:    "ObjectID", KeyField: "CustomerKey", NameField: "Name",
	})
}

// NewSendClassification builds the Send Classification extractor.
func NewSendClassification(deps Deps) Extractor {
	return newSimpleSOAPExtractor(deps, simpleSOAPSpec{
		Type: model.ObjectSendClassification, Label: "send classifications", ObjectType: "SendClassification",
		Properties: []string{"ObjectID", "CustomerKey", "Name", "SendClassificationType", "CreatedDate", "ModifiedDate"},
		IDField:    "ObjectID", KeyField: "CustomerKey", NameField: "Name",
	})
}

// NewFolder builds the Folder extractor: the raw DataFolder
// objects themselves, distinct from the per-kind FolderMap caches other
// extractors resolve breadcrumbs against.
func NewFolder(deps Deps) Extractor {
	return Pipeline{
		Type:  model.ObjectFolder,
		Label: "folders",

		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			var out []RawItem
			props := []string{"ID", "ObjectID", "Name", "ParentFolder.ID", "ContentType", "CreatedDate", "ModifiedDate"}
			err := deps.SOAP.RetrieveAll(ctx, "DataFolder", props, "", func(nodes []*soaptransport.Node) error {
				for _, n := range nodes {
					raw := soapNodeToRaw(n)
					if parent := n.Get("ParentFolder"); parent != nil {
						raw["_parentID"] = textOfChild(parent, "ID")
					}
					out = append(out, raw)
				}
				return nil
			})
			return out, err
		},

		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			obj := model.Object{
				ID:           stringField(raw, "ID"),
				Type:         model.ObjectFolder,
				Name:         stringField(raw, "Name"),
				FolderID:     stringField(raw, "_parentID"),
				CreatedDate:  timeField(raw, "CreatedDate"),
				ModifiedDate: timeField(raw, "ModifiedDate"),
				Attributes:   map[string]interface{}{"contentType": stringField(raw, "ContentType")},
			}
			return obj, nil, nil
		},
	}
}
