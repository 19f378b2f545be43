// Package soaptransport is the platform's SOAP client: an
// envelope-building Retrieve client with fueloauth-header auth and
// ContinueRequest-keyed continuation pagination, returning a generic,
// namespace-stripped XML-to-map decoding of each result batch.
package soaptransport

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

const (
	pageCeiling     = 100
	defaultBodyLimit = int64(20 << 20) // 20 MiB, SOAP payloads run bigger than REST
	statusMoreData  = "MoreDataAvailable"
	statusOK        = "OK"
)

// Transport is the SOAP client shared by all SOAP-backed extractors
// (primarily Data Extension retrieval).
type Transport struct {
	Endpoint string

	client  *http.Client
	tokens  *auth.TokenManager
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

// New constructs a SOAP Transport.
func New(endpoint string, client *http.Client, tokens *auth.TokenManager, limiter *ratelimit.Limiter, log *logger.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("soap-transport")
	}
	return &Transport{Endpoint: endpoint, client: client, tokens: tokens, limiter: limiter, log: log}
}

// Node is a generic, namespace-stripped XML element: Name identifies the
// local (unprefixed) element name, Attrs holds its attributes, Text holds
// any direct character data, and Children holds nested elements keyed by
// name with repeated siblings collapsed into a slice.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children map[string][]*Node
}

// Get returns the first child with the given name, or nil.
func (n *Node) Get(name string) *Node {
	if n == nil {
		return nil
	}
	if kids := n.Children[name]; len(kids) > 0 {
		return kids[0]
	}
	return nil
}

// All returns every child with the given name.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	return n.Children[name]
}

// RetrieveAll pages through a Retrieve/ContinueRequest sequence for
// objectType, invoking onBatch with each page's decoded Results nodes.
// filter is an optional SOAP SimpleFilterPart-shaped snippet;
// pass "" for no filter.
func (t *Transport) RetrieveAll(ctx context.Context, objectType string, properties []string, filter string, onBatch func([]*Node) error) error {
	requestID := ""
	for page := 1; page <= pageCeiling; page++ {
		var envelope string
		if page == 1 {
			envelope = buildRetrieveEnvelope(objectType, properties, filter)
		} else {
			envelope = buildContinueEnvelope(requestID)
		}

		body, err := t.post(ctx, ratelimit.Kind("soap_"+objectType), envelope)
		if err != nil {
			return err
		}

		root, err := decodeStripped(body)
		if err != nil {
			return model.NewExtractionError(model.ErrParse, "soap-transport", "", err)
		}

		respNode := findFirst(root, "RetrieveResponseMsg")
		if respNode == nil {
			respNode = findFirst(root, "Body")
		}

		overallStatus := textOf(findFirst(respNode, "OverallStatus"))
		requestID = textOf(findFirst(respNode, "RequestID"))

		results := collectAll(respNode, "Results")
		if len(results) > 0 {
			if err := onBatch(results); err != nil {
				return err
			}
		}

		if overallStatus != statusMoreData {
			if overallStatus != "" && overallStatus != statusOK && len(results) == 0 {
				return model.NewExtractionError(model.ErrDataConsistency, "soap-transport", "", fmt.Errorf("unexpected OverallStatus %q for %s", overallStatus, objectType))
			}
			return nil
		}
		if requestID == "" {
			return model.NewExtractionError(model.ErrDataConsistency, "soap-transport", "", fmt.Errorf("server reported MoreDataAvailable without a RequestID for %s", objectType))
		}
	}
	return model.NewExtractionError(model.ErrDataConsistency, "soap-transport", "", fmt.Errorf("retrieveAll(%s): page ceiling of %d reached", objectType, pageCeiling))
}

func (t *Transport) post(ctx context.Context, kind ratelimit.Kind, envelope string) ([]byte, error) {
	var release func(ratelimit.Outcome)
	if t.limiter != nil {
		r, err := t.limiter.Acquire(ctx, kind)
		if err != nil {
			return nil, err
		}
		release = r
	}
	outcome := ratelimit.OutcomeSuccess
	defer func() {
		if release != nil {
			release(outcome)
		}
	}()

	var tok string
	if t.tokens != nil {
		var err error
		tok, err = t.tokens.GetToken(ctx)
		if err != nil {
			outcome = ratelimit.OutcomeFailure
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, strings.NewReader(envelope))
	if err != nil {
		outcome = ratelimit.OutcomeFailure
		return nil, fmt.Errorf("build SOAP request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "Retrieve")
	req.Header.Set("fueloauth", tok)

	resp, err := t.client.Do(req)
	if err != nil {
		outcome = ratelimit.OutcomeFailure
		return nil, model.NewExtractionError(model.ErrHTTPRetryExhausted, "soap-transport", "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultBodyLimit))
	if err != nil {
		outcome = ratelimit.OutcomeFailure
		return nil, fmt.Errorf("read SOAP response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && t.tokens != nil {
		if _, err := t.tokens.ForceRefresh(ctx, "401 on SOAP retrieve"); err != nil {
			outcome = ratelimit.OutcomeFailure
			return nil, err
		}
		outcome = ratelimit.OutcomeFailure
		return nil, model.NewExtractionError(model.ErrHTTPNonRetryable, "soap-transport", "", fmt.Errorf("SOAP endpoint returned 401; token refreshed, request not retried"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = ratelimit.OutcomeFailure
		return nil, model.NewExtractionError(model.ErrHTTPNonRetryable, "soap-transport", "", fmt.Errorf("SOAP endpoint returned status %d", resp.StatusCode))
	}
	return data, nil
}

const envelopeHeader = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<soap:Body>`

const envelopeFooter = `</soap:Body>
</soap:Envelope>`

func buildRetrieveEnvelope(objectType string, properties []string, filter string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`<RetrieveRequestMsg xmlns="http://exacttarget.com/wsdl/partnerAPI">`)
	b.WriteString(`<RetrieveRequest>`)
	fmt.Fprintf(&b, `<ObjectType>%s</ObjectType>`, xmlEscape(objectType))
	for _, p := range properties {
		fmt.Fprintf(&b, `<Properties>%s</Properties>`, xmlEscape(p))
	}
	if filter != "" {
		b.WriteString(filter)
	}
	b.WriteString(`</RetrieveRequest>`)
	b.WriteString(`</RetrieveRequestMsg>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func buildContinueEnvelope(requestID string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`<RetrieveRequestMsg xmlns="http://exacttarget.com/wsdl/partnerAPI">`)
	b.WriteString(`<ContinueRequest>`)
	fmt.Fprintf(&b, `<RequestID>%s</RequestID>`, xmlEscape(requestID))
	b.WriteString(`</ContinueRequest>`)
	b.WriteString(`</RetrieveRequestMsg>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
