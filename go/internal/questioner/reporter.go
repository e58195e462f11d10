package questioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/contest/go/clients"
	"github.com/mcdev12/contest/go/internal/bus"
	"github.com/mcdev12/contest/go/internal/orchestrator"
)

// ErrReportRejected means the ledger refused the report for good: unknown
// round, wrong secret or a malformed run.
var ErrReportRejected = errors.New("report rejected")

// Reporter posts finished games to the result URL carried by the play request.
type Reporter struct {
	httpClient *http.Client
}

func NewReporter(httpClient *http.Client) *Reporter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Reporter{httpClient: httpClient}
}

// Report returns nil on a 2xx answer. Rejections are terminal; transport
// errors and other statuses are worth another delivery.
func (r *Reporter) Report(ctx context.Context, resultURL string, report orchestrator.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	client := clients.NewBaseClient(resultURL)
	client.SetHTTPClient(r.httpClient)

	status, resp, err := client.Do(ctx, http.MethodPost, "", body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound, status == http.StatusForbidden, status == http.StatusBadRequest:
		return bus.Terminal(fmt.Errorf("%w: status %d: %s", ErrReportRejected, status, resp))
	default:
		return &clients.StatusError{StatusCode: status, Body: string(resp)}
	}
}
