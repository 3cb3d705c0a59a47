package scheduler

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// DefaultNamespace is the namespace of the queuer service operations.
const DefaultNamespace = "http://remotelabs.eng.uts.edu.au/schedserver/queuer"

const soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"

// SOAPClient calls the queuer service's isUserInQueue operation.
type SOAPClient struct {
	endpoint   string
	namespace  string
	httpClient *http.Client
}

// NewSOAPClient creates a client for cfg.Endpoint.
func NewSOAPClient(cfg Config) *SOAPClient {
	cfg.ApplyDefaults()
	return &SOAPClient{
		endpoint:  cfg.Endpoint,
		namespace: cfg.Namespace,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type envelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	Body    struct {
		Request queueRequest
	} `xml:"soapenv:Body"`
}

type queueRequest struct {
	XMLName xml.Name
	UserID  struct {
		UserQName string `xml:"userQName"`
	} `xml:"userID"`
}

// IsUserInQueue implements QueueChecker.
func (c *SOAPClient) IsUserInQueue(ctx context.Context, principal string) (QueueStatus, error) {
	env := envelope{SoapEnv: soapEnvNS}
	env.Body.Request.XMLName = xml.Name{Space: c.namespace, Local: "isUserInQueue"}
	env.Body.Request.UserID.UserQName = principal

	body, err := xml.Marshal(env)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(append([]byte(xml.Header), body...)))
	if err != nil {
		return QueueStatus{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:isUserInQueue")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return QueueStatus{}, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return QueueStatus{}, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	return parseQueueStatus(respBody)
}

// parseQueueStatus reads the inQueue and inSession flags from a response,
// whatever prefixes the server chose for its namespaces.
func parseQueueStatus(data []byte) (QueueStatus, error) {
	var (
		status           QueueStatus
		current          string
		sawQueue, sawSes bool
	)

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return QueueStatus{}, fmt.Errorf("%w: malformed response: %w", ErrUnavailable, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
			if current == "Fault" {
				return QueueStatus{}, fmt.Errorf("%w: soap fault", ErrUnavailable)
			}
		case xml.EndElement:
			current = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch current {
			case "inQueue":
				status.InQueue, sawQueue = parseBool(text), true
			case "inSession":
				status.InSession, sawSes = parseBool(text), true
			}
		}
	}

	if !sawQueue && !sawSes {
		return QueueStatus{}, fmt.Errorf("%w: response carries no queue status", ErrUnavailable)
	}
	return status, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
