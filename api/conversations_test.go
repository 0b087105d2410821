package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAPI_createDirectConversation(t *testing.T) {
	conv := Conversation{
		ID:            "c1",
		Members:       []string{"alice", "bob"},
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastMessageAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	convBody := `{
		"id": "c1",
		"is_group": false,
		"members": ["alice", "bob"],
		"created_at": "2024-01-01T00:00:00Z",
		"last_message_at": "2024-01-01T00:00:00Z"
	}`

	tests := []struct {
		name       string
		db         *testdb
		req        string
		wantStatus int
		wantBody   string
		wantEvents []string
	}{
		{
			name:       "MissingUser",
			db:         &testdb{},
			req:        `{"user_a": "alice"}`,
			wantStatus: 400,
		},
		{
			name:       "SameUser",
			db:         &testdb{},
			req:        `{"user_a": "alice", "user_b": "alice"}`,
			wantStatus: 400,
			wantBody: `{
				"error": "A one-on-one conversation needs two distinct users"
			}`,
		},
		{
			name: "Created",
			db: &testdb{
				getOrCreateDirect: func(t *testing.T, userA, userB string) (Conversation, bool, error) {
					if userA != "alice" || userB != "bob" {
						t.Errorf("Got pair (%q, %q), want (alice, bob)", userA, userB)
					}
					return conv, true, nil
				},
			},
			req:        `{"user_a": "alice", "user_b": "bob"}`,
			wantStatus: 201,
			wantBody:   convBody,
			wantEvents: []string{EventConversationCreated},
		},
		{
			name: "Existing",
			db: &testdb{
				getOrCreateDirect: func(t *testing.T, userA, userB string) (Conversation, bool, error) {
					return conv, false, nil
				},
			},
			req:        `{"user_a": "alice", "user_b": "bob"}`,
			wantStatus: 200,
			wantBody:   convBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &testbus{}
			api := newTestAPI(t, tt.db, nil, bus)
			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/conversations/direct", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			checkEvents(t, bus, tt.wantEvents...)
		})
	}
}

func TestAPI_createGroupConversation(t *testing.T) {
	tests := []struct {
		name       string
		db         *testdb
		req        string
		wantStatus int
		wantBody   string
		wantEvents []string
	}{
		{
			name:       "MissingName",
			db:         &testdb{},
			req:        `{"member_ids": ["y", "z"], "creator_id": "x"}`,
			wantStatus: 400,
		},
		{
			name:       "BlankName",
			db:         &testdb{},
			req:        `{"name": "  ", "member_ids": ["y", "z"], "creator_id": "x"}`,
			wantStatus: 400,
		},
		{
			name:       "NoMembers",
			db:         &testdb{},
			req:        `{"name": "Team", "member_ids": [], "creator_id": "x"}`,
			wantStatus: 400,
		},
		{
			name: "OK",
			db: &testdb{
				createGroup: func(t *testing.T, name string, memberIDs []string, creatorID string) (Conversation, error) {
					if name != "Team" {
						t.Errorf("Got name %q, want Team", name)
					}
					if creatorID != "x" {
						t.Errorf("Got creator %q, want x", creatorID)
					}
					return Conversation{
						ID:            "c1",
						IsGroup:       true,
						Name:          name,
						Members:       []string{"x", "y", "z"},
						CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
						LastMessageAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					}, nil
				},
			},
			req:        `{"name": "Team", "member_ids": ["y", "z"], "creator_id": "x"}`,
			wantStatus: 201,
			wantBody: `{
				"id": "c1",
				"is_group": true,
				"name": "Team",
				"members": ["x", "y", "z"],
				"created_at": "2024-01-01T00:00:00Z",
				"last_message_at": "2024-01-01T00:00:00Z"
			}`,
			wantEvents: []string{EventConversationCreated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &testbus{}
			api := newTestAPI(t, tt.db, nil, bus)
			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/conversations/group", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			checkEvents(t, bus, tt.wantEvents...)
		})
	}
}

func TestAPI_listConversations(t *testing.T) {
	t.Run("MissingUserID", func(t *testing.T) {
		api := newTestAPI(t, &testdb{}, nil, nil)
		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/conversations")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 400)
	})

	t.Run("OK", func(t *testing.T) {
		db := &testdb{
			listConversations: func(t *testing.T, userID string) ([]Conversation, error) {
				if userID != "alice" {
					t.Errorf("Got user %q, want alice", userID)
				}
				return []Conversation{
					{
						ID:            "c2",
						IsGroup:       true,
						Name:          "Team",
						Members:       []string{"alice", "bob", "carol"},
						CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
						LastMessageAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
					},
					{
						ID:            "c1",
						Members:       []string{"alice", "bob"},
						CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
						LastMessageAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
					},
				}, nil
			},
		}
		api := newTestAPI(t, db, nil, nil)
		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/conversations?user_id=alice")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 200)
		checkBody(t, resp, `{
			"conversations": [
				{
					"id": "c2",
					"is_group": true,
					"name": "Team",
					"members": ["alice", "bob", "carol"],
					"created_at": "2024-01-01T00:00:00Z",
					"last_message_at": "2024-01-03T00:00:00Z"
				},
				{
					"id": "c1",
					"is_group": false,
					"members": ["alice", "bob"],
					"created_at": "2024-01-01T00:00:00Z",
					"last_message_at": "2024-01-02T00:00:00Z"
				}
			]
		}`)
	})
}

func TestAPI_getConversation(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		db := &testdb{
			getConversation: func(t *testing.T, conversationID string) (Conversation, bool, error) {
				return Conversation{}, false, nil
			},
		}
		api := newTestAPI(t, db, nil, nil)
		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/conversations/nope")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 404)
		checkBody(t, resp, `{
			"error": "Conversation not found"
		}`)
	})

	t.Run("OK", func(t *testing.T) {
		db := &testdb{
			getConversation: func(t *testing.T, conversationID string) (Conversation, bool, error) {
				if conversationID != "c1" {
					t.Errorf("Got conversation %q, want c1", conversationID)
				}
				return Conversation{
					ID:            "c1",
					Members:       []string{"alice", "bob"},
					CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					LastMessageAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				}, true, nil
			},
		}
		api := newTestAPI(t, db, nil, nil)
		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/conversations/c1")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 200)
		checkBody(t, resp, `{
			"id": "c1",
			"is_group": false,
			"members": ["alice", "bob"],
			"created_at": "2024-01-01T00:00:00Z",
			"last_message_at": "2024-01-01T00:00:00Z"
		}`)
	})
}
