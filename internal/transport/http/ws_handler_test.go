package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"prediction-poll-service/internal/app"
	"prediction-poll-service/internal/domain"
	"prediction-poll-service/internal/infra/memory"
)

func TestWebSocketVoteAndResolveFlow(t *testing.T) {
	service := newTestService(t)
	group := createGroup(t, service)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizGroupId=" + group.ID + "&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the group snapshot first.
	msgType, _ := readNext(conn, t, "group")
	if msgType != "group" {
		t.Fatalf("expected group, got %s", msgType)
	}

	voteMsg := map[string]any{
		"type": "vote",
		"payload": map[string]any{
			"questionId":  group.QuestionIDs[0],
			"optionIndex": 0,
		},
	}
	if err := conn.WriteJSON(voteMsg); err != nil {
		t.Fatalf("write vote: %v", err)
	}

	ackSeen := false
	eventSeen := false
	for i := 0; i < 3 && !(ackSeen && eventSeen); i++ {
		typ, _ := readNext(conn, t, "")
		switch typ {
		case "voteAck":
			ackSeen = true
		case "event":
			eventSeen = true
		}
	}
	if !ackSeen || !eventSeen {
		t.Fatalf("expected voteAck and event, got ack=%v event=%v", ackSeen, eventSeen)
	}

	// Voting again must surface a specific error.
	if err := conn.WriteJSON(voteMsg); err != nil {
		t.Fatalf("write duplicate vote: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	if payload["message"] != domain.ErrAlreadyVoted.Error() {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	service := newTestService(t)
	wsHandler := NewWSHandler(service)

	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL + "?quizGroupId=qg-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func newTestService(t *testing.T) *app.PollService {
	t.Helper()
	members := memory.NewStaticMembershipProvider(map[string][]domain.Member{
		"group-1": {
			{ID: "creator", DisplayName: "Cris"},
			{ID: "u1", DisplayName: "Alice"},
			{ID: "u2", DisplayName: "Bob"},
		},
	})
	return app.NewPollService(memory.NewRecordStore(), members)
}

func createGroup(t *testing.T, service *app.PollService) *domain.QuizGroup {
	t.Helper()
	group, err := service.CreateQuizGroup(context.Background(), app.CreateQuizGroupInput{
		GroupID:   "group-1",
		CreatorID: "creator",
		Kind:      domain.KindOpen,
		Mode:      domain.ModeNormal,
		EndTime:   time.Now().Add(time.Hour),
		Questions: []app.QuestionInput{
			{Prompt: "Who wins the final?", Options: []string{"home", "away"}},
		},
	})
	if err != nil {
		t.Fatalf("create quiz group: %v", err)
	}
	return group
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
