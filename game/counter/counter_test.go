package counter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/wricardo/livestate/live"
)

const (
	u1 live.UserID = "11111111-1111-4111-8111-111111111111"
	u2 live.UserID = "22222222-2222-4222-8222-222222222222"
)

func TestEventUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    Event
		wantErr bool
	}{
		{`"Increment"`, Increment, false},
		{`"Decrement"`, Decrement, false},
		{`{"Increment":null}`, Increment, false},
		{`"Reset"`, 0, true},
		{`42`, 0, true},
		{`{"Increment":1,"Decrement":1}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got Event
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.want)
			}
		})
	}

	var e Event
	if err := json.Unmarshal([]byte(`"Reset"`), &e); !errors.Is(err, live.ErrUnknownEvent) {
		t.Errorf("unknown tag error = %v, want ErrUnknownEvent", err)
	}
}

func TestCounterViewsArePerUser(t *testing.T) {
	c := New()
	c.Join(u1)
	c.Join(u2)

	c.Apply(Increment, u1)
	if got := c.View(u1); got != (View{Count: 1, PrivateCount: 1}) {
		t.Errorf("u1 view = %+v", got)
	}
	if got := c.View(u2); got != (View{Count: 1, PrivateCount: 0}) {
		t.Errorf("u2 view = %+v", got)
	}

	c.Apply(Decrement, u2)
	if got := c.View(u1); got != (View{Count: 0, PrivateCount: 1}) {
		t.Errorf("u1 view = %+v", got)
	}
	if got := c.View(u2); got != (View{Count: 0, PrivateCount: -1}) {
		t.Errorf("u2 view = %+v", got)
	}
}

func TestJoinKeepsExistingCount(t *testing.T) {
	c := New()
	c.Join(u1)
	c.Apply(Increment, u1)
	c.Join(u1)

	if got := c.View(u1).PrivateCount; got != 1 {
		t.Errorf("PrivateCount after rejoin = %d, want 1", got)
	}
}

func TestNewState(t *testing.T) {
	s := NewState()
	if s.RouteName() != Kind {
		t.Errorf("RouteName() = %q, want %q", s.RouteName(), Kind)
	}
	if s.TickInterval() != 0 {
		t.Errorf("TickInterval() = %v, want 0", s.TickInterval())
	}

	effect, err := s.HandleEvent([]byte(`"Increment"`), u1)
	if err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}
	if !effect.IsNone() {
		t.Errorf("effect = %v, want none", effect)
	}

	data, err := json.Marshal(s.View(u1))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(data) != `{"count":1,"private_count":1}` {
		t.Errorf("view JSON = %s", data)
	}

	if _, err := s.HandleEvent([]byte(`"Nope"`), u1); err == nil {
		t.Error("expected decode error for unknown event")
	}
}
