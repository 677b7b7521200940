package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSelectNodeDeterministic(t *testing.T) {
	r := New("A", []string{"A", "B"})
	first := r.SelectNode("BRAVO7")
	for i := 0; i < 100; i++ {
		if got := r.SelectNode("BRAVO7"); got != first {
			t.Fatalf("call %d returned %s, first returned %s", i, got, first)
		}
	}
}

func TestSelectNodeCaseInsensitive(t *testing.T) {
	r := New("A", []string{"A", "B"})
	if r.SelectNode("abc123") != r.SelectNode("ABC123") {
		t.Error("routing must ignore room code casing")
	}
}

func TestSelectNodeSplit(t *testing.T) {
	r := New("A", []string{"A", "B"})
	countA := 0
	for i := 0; i < 10_000; i++ {
		if r.SelectNode(fmt.Sprintf("ROOM%06d", i)) == "A" {
			countA++
		}
	}
	if countA < 4_500 || countA > 5_500 {
		t.Errorf("node A got %d of 10000 codes, want 4500-5500", countA)
	}
}

func TestSingleNodeOwnsEverything(t *testing.T) {
	r := New("A", nil)
	if !r.Owns("ANY") {
		t.Error("a single-node deployment owns every code")
	}
}

func TestCheckRequestMismatch(t *testing.T) {
	r := New("A", []string{"A", "B"})

	// Find a code owned by B.
	code := ""
	for i := 0; i < 1000; i++ {
		c := fmt.Sprintf("ROOM%03d", i)
		if r.SelectNode(c) == "B" {
			code = c
			break
		}
	}
	if code == "" {
		t.Fatal("no B-owned code found")
	}

	req := httptest.NewRequest(http.MethodPost, "/rooms/"+code+"/event", nil)
	rec := httptest.NewRecorder()
	if r.CheckRequest(rec, req, code) {
		t.Fatal("request for a foreign room must be refused")
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	var body struct {
		Code         string `json:"code"`
		ExpectedNode string `json:"expectedNode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "ROOM_NODE_MISMATCH" {
		t.Errorf("code = %s", body.Code)
	}
	if body.ExpectedNode != "B" {
		t.Errorf("expectedNode = %s, want B", body.ExpectedNode)
	}
}

func TestCheckRequestHonorsHint(t *testing.T) {
	r := New("A", []string{"A", "B"})
	code := ""
	for i := 0; i < 1000; i++ {
		c := fmt.Sprintf("ROOM%03d", i)
		if r.SelectNode(c) == "A" {
			code = c
			break
		}
	}

	// Owned code, matching hint: allowed.
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(NodeHeader, "A")
	if !r.CheckRequest(httptest.NewRecorder(), req, code) {
		t.Error("owned room with matching hint should pass")
	}

	// A hint naming another node is refused even without a room code.
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(NodeHeader, "B")
	rec := httptest.NewRecorder()
	if r.CheckRequest(rec, req, "") {
		t.Error("foreign node hint should be refused")
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDoWithNodeRetry(t *testing.T) {
	r := New("A", []string{"A", "B"})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get(NodeHeader) == "B" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(mismatch{
			Code:         "ROOM_NODE_MISMATCH",
			RoomCode:     "BRAVO7",
			Node:         r.NodeID,
			ExpectedNode: "B",
		})
	}))
	defer ts.Close()

	builds := 0
	resp, err := DoWithNodeRetry(ts.Client(), func(node string) (*http.Request, error) {
		builds++
		return http.NewRequest(http.MethodPost, ts.URL, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after the hinted retry", resp.StatusCode)
	}
	if builds != 2 {
		t.Errorf("builds = %d, want 2", builds)
	}
}

func TestExpectedNodeIgnoresOtherErrors(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}
	if _, ok := ExpectedNode(resp); ok {
		t.Error("a 404 is not a node mismatch")
	}
}
