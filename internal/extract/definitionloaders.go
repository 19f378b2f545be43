package extract

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// definitionloaders.go wires the Cache Manager's by-id definition lookup
// tables. Extractors use them to stamp display names onto
// edge endpoints whose raw payload only carries an id; a miss is never an
// error, the edge just keeps its bare id.

type restDefinitionSource struct {
	Kind       cache.Kind
	Path       string
	Type       model.ObjectType
	IDFields   []string
	NameFields []string
}

var restDefinitionSources = []restDefinitionSource{
	{cache.KindQueryByID, "/automation/v1/queries", model.ObjectQuery,
		[]string{"queryDefinitionId", "id"}, []string{"name"}},
	{cache.KindScriptByID, "/automation/v1/scripts", model.ObjectScript,
		[]string{"ssjsActivityId", "id"}, []string{"name"}},
}

type soapDefinitionSource struct {
	Kind       cache.Kind
	ObjectType string
	Type       model.ObjectType
	Props      []string
}

var soapDefinitionSources = []soapDefinitionSource{
	{cache.KindEmailByID, "Email", model.ObjectEmail,
		[]string{"ID", "Name"}},
	{cache.KindTriggeredSendByID, "TriggeredSendDefinition", model.ObjectTriggeredSend,
		[]string{"ObjectID", "Name"}},
	{cache.KindDataExtensionByID, "DataExtension", model.ObjectDataExtension,
		[]string{"ObjectID", "CustomerKey", "Name"}},
}

// RegisterDefinitionLoaders registers every definition lookup loader
// against mgr. Call once per Runner/Cache Manager instance, alongside
// RegisterFolderLoaders.
func RegisterDefinitionLoaders(mgr *cache.Manager, rest *resttransport.Transport, soap *soaptransport.Transport) {
	for _, src := range restDefinitionSources {
		src := src
		mgr.Register(src.Kind, newRESTDefinitionLoader(rest, src))
	}
	for _, src := range soapDefinitionSources {
		src := src
		mgr.Register(src.Kind, newSOAPDefinitionLoader(soap, src))
	}
}

func newRESTDefinitionLoader(rest *resttransport.Transport, src restDefinitionSource) cache.Loader {
	return func(ctx context.Context) (map[string]interface{}, int, error) {
		entries := map[string]interface{}{}
		unresolved := 0
		err := rest.Paginate(ctx, resttransport.PaginateOptions{
			Kind: ratelimit.Kind(src.Kind),
			Path: src.Path,
		}, func(raws []json.RawMessage) error {
			for _, rawMsg := range raws {
				var raw RawItem
				if jsonErr := json.Unmarshal(rawMsg, &raw); jsonErr != nil {
					unresolved++
					continue
				}
				id := stringField(raw, src.IDFields...)
				if id == "" {
					unresolved++
					continue
				}
				entries[id] = model.Summary{
					Type: src.Type,
					ID:   id,
					Name: stringField(raw, src.NameFields...),
				}
			}
			return nil
		})
		if err != nil {
			return nil, unresolved, err
		}
		return entries, unresolved, nil
	}
}

func newSOAPDefinitionLoader(soap *soaptransport.Transport, src soapDefinitionSource) cache.Loader {
	return func(ctx context.Context) (map[string]interface{}, int, error) {
		entries := map[string]interface{}{}
		unresolved := 0
		err := soap.RetrieveAll(ctx, src.ObjectType, src.Props, "", func(nodes []*soaptransport.Node) error {
			for _, n := range nodes {
				id := textOfChild(n, src.Props[0])
				if id == "" {
					unresolved++
					continue
				}
				summary := model.Summary{
					Type: src.Type,
					ID:   id,
					Name: textOfChild(n, "Name"),
				}
				entries[id] = summary
				// Data extensions are referenced by ObjectID in some
				// payloads and by CustomerKey in others; index both.
				if key := textOfChild(n, "CustomerKey"); key != "" && key != id {
					entries[key] = summary
				}
			}
			return nil
		})
		if err != nil {
			return nil, unresolved, err
		}
		return entries, unresolved, nil
	}
}

// lookupName resolves id to its cached display name under kind, or ""
// when the id is unknown or the cache failed to load.
func lookupName(ctx context.Context, mgr *cache.Manager, kind cache.Kind, id string) string {
	if id == "" || mgr == nil {
		return ""
	}
	v, ok, err := mgr.Get(ctx, kind, id)
	if err != nil || !ok {
		return ""
	}
	if s, isSummary := v.(model.Summary); isSummary {
		return s.Name
	}
	return ""
}
