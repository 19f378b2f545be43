package extract

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// folderloaders.go wires the Cache Manager's per-category folder map
// loaders. Extractors only ever reach these indirectly,
// through deps.Cache.GetBreadcrumb(kind, folderID); RegisterFolderLoaders
// is the one place that knows how each category's folder tree is actually
// fetched.

// restFolderCategory names a REST-surfaced folder category endpoint.
type restFolderCategory struct {
	Kind         cache.Kind
	CategoryPath string // e.g. "/automation/v1/folders/automations"
}

var restFolderCategories = []restFolderCategory{
	{cache.KindFolderAutomation, "/automation/v1/folders/automations"},
	{cache.KindFolderQuery, "/automation/v1/folders/queries"},
	{cache.KindFolderScript, "/automation/v1/folders/scripts"},
	{cache.KindFolderImport, "/automation/v1/folders/imports"},
	{cache.KindFolderDataExtract, "/automation/v1/folders/dataextracts"},
	{cache.KindFolderFileTransfer, "/automation/v1/folders/filetransfers"},
	{cache.KindFolderFilter, "/automation/v1/folders/filters"},
	{cache.KindFolderAsset, "/asset/v1/content/categories"},
}

// soapFolderCategory names a SOAP DataFolder ContentType this cache kind
// resolves against. Prefix matching covers categories the platform splits
// across sibling content types ("triggered_send" vs
// "triggered_send_journeybuilder").
type soapFolderCategory struct {
	Kind        cache.Kind
	ContentType string
	Prefix      bool
}

var soapFolderCategories = []soapFolderCategory{
	{cache.KindFolderDataExtension, "dataextension", false},
	{cache.KindFolderJourney, "journey", false},
	{cache.KindFolderEmail, "email", false},
	{cache.KindFolderList, "subscriberlist", false},
	{cache.KindFolderTriggeredSend, "triggered_send", true},
}

// RegisterFolderLoaders registers every per-category folder cache loader
// against mgr. Call once per Runner/Cache Manager instance, before the
// first extractor run.
func RegisterFolderLoaders(mgr *cache.Manager, rest *resttransport.Transport, soap *soaptransport.Transport) {
	for _, fc := range restFolderCategories {
		fc := fc
		mgr.Register(fc.Kind, newRESTFolderLoader(rest, fc.Kind, fc.CategoryPath))
	}

	shared := &soapFolderSource{}
	for _, fc := range soapFolderCategories {
		fc := fc
		mgr.Register(fc.Kind, newSOAPFolderLoader(soap, shared, fc))
	}
}

// restFolderRecord is the shape a REST folder-listing endpoint is assumed
// to return per entry.
type restFolderRecord struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
}

func newRESTFolderLoader(rest *resttransport.Transport, kind cache.Kind, path string) cache.Loader {
	return func(ctx context.Context) (map[string]interface{}, int, error) {
		entries := map[string]interface{}{}
		unresolved := 0
		err := rest.Paginate(ctx, resttransport.PaginateOptions{
			Kind: ratelimit.Kind(kind),
			Path: path,
		}, func(raws []json.RawMessage) error {
			for _, raw := range raws {
				var rec restFolderRecord
				if jsonErr := json.Unmarshal(raw, &rec); jsonErr != nil {
					unresolved++
					continue
				}
				if rec.ID == "" {
					unresolved++
					continue
				}
				entries[rec.ID] = model.Folder{
					ID:          rec.ID,
					ParentID:    rec.ParentID,
					Name:        rec.Name,
					ContentType: string(kind),
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

// soapFolderSource fetches the complete DataFolder tree at most once and
// lets every content-type-scoped loader filter its own slice out of the
// shared result, so N folder cache kinds cost one SOAP retrieveAll instead
// of N.
type soapFolderSource struct {
	mu     sync.Mutex
	loaded bool
	nodes  []*soaptransport.Node
	err    error
}

func (s *soapFolderSource) load(ctx context.Context, soap *soaptransport.Transport) ([]*soaptransport.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.nodes, s.err
	}
	var out []*soaptransport.Node
	props := []string{"ID", "Name", "ParentFolder.ID", "ContentType"}
	err := soap.RetrieveAll(ctx, "DataFolder", props, "", func(nodes []*soaptransport.Node) error {
		out = append(out, nodes...)
		return nil
	})
	s.loaded = true
	s.nodes, s.err = out, err
	return out, err
}

func newSOAPFolderLoader(soap *soaptransport.Transport, shared *soapFolderSource, fc soapFolderCategory) cache.Loader {
	return func(ctx context.Context) (map[string]interface{}, int, error) {
		nodes, err := shared.load(ctx, soap)
		if err != nil {
			return nil, 0, err
		}
		entries := map[string]interface{}{}
		unresolved := 0
		for _, n := range nodes {
			ct := textOfChild(n, "ContentType")
			if fc.Prefix {
				if !strings.HasPrefix(ct, fc.ContentType) {
					continue
				}
			} else if ct != fc.ContentType {
				continue
			}
			id := textOfChild(n, "ID")
			if id == "" {
				unresolved++
				continue
			}
			parentID := ""
			if parent := n.Get("ParentFolder"); parent != nil {
				parentID = textOfChild(parent, "ID")
			}
			entries[id] = model.Folder{
				ID:          id,
				ParentID:    parentID,
				Name:        textOfChild(n, "Name"),
				ContentType: ct,
			}
		}
		return entries, unresolved, nil
	}
}
