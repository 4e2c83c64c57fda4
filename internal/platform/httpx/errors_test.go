package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestRespondErrorMapsWorkflowKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.PermissionDenied("sales.quotation.approve"), http.StatusForbidden},
		{shared.InvalidTransition("cannot send from DRAFT"), http.StatusConflict},
		{shared.ConcurrentModification("lost the race"), http.StatusConflict},
		{shared.ValidationFailed("bad lines"), http.StatusUnprocessableEntity},
		{shared.DependencyUnavailable("customer gone"), http.StatusFailedDependency},
	}
	for _, tc := range cases {
		status, body := respond(t, tc.err)
		require.Equal(t, tc.status, status, "for %v", tc.err)
		wf, _ := shared.AsWorkflowError(tc.err)
		require.Equal(t, string(wf.Kind), body.Kind)
		require.Equal(t, wf.Message, body.Detail)
	}
}

func TestRespondErrorCarriesInvalidItems(t *testing.T) {
	err := shared.ValidationFailed("import items failed verification",
		shared.InvalidItem{Index: 1, Field: "serial_number", Reason: "is required for serialized products"},
		shared.InvalidItem{Index: 2, Field: "uom", Reason: "is required"},
	)
	status, body := respond(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Len(t, body.InvalidItems, 2)
	require.Equal(t, "serial_number", body.InvalidItems[0].Field)
}

func TestRespondErrorNotFound(t *testing.T) {
	status, _ := respond(t, shared.ErrNotFound)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	status, _ := respond(t, ErrDuplicate)
	require.Equal(t, http.StatusConflict, status)

	status, body := respond(t, json.Unmarshal([]byte("{"), &struct{}{}))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Empty(t, body.Detail)
}
