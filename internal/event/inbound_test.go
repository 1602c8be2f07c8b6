// ABOUTME: Tests for payload classification and id/time decoding
// ABOUTME: Covers chat, support, ticket snapshot, certification and rejected shapes

package event

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ChatMessage(t *testing.T) {
	raw := `{"id":10,"contactId":7,"senderId":3,"senderName":"Ana","content":"hi",
		"createdAt":"2024-05-01T10:00:00Z","contactHouseId":42,"contactHouseTitle":"Loft"}`

	in, err := Decode(UserTopic("1"), []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, KindChat, in.Kind)
	require.NotNil(t, in.Chat)
	assert.Nil(t, in.Support)
	assert.Equal(t, ID("7"), in.Chat.ContactID)
	assert.Equal(t, ID("3"), in.SenderID())
	assert.Equal(t, ID("42"), in.Chat.HouseID)
	assert.Equal(t, "Loft", in.Chat.HouseTitle)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), in.Chat.CreatedAt.UTC())
}

func TestDecode_SupportMessage(t *testing.T) {
	raw := `{"id":1,"ticketId":"T-9","ticketSubject":"Leak","senderId":5,"content":"help"}`

	in, err := Decode(UserTopic("1"), []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, KindSupport, in.Kind)
	require.NotNil(t, in.Support)
	assert.Equal(t, ID("T-9"), in.Support.TicketID)
	assert.Equal(t, "Leak", in.Support.TicketSubject)
	assert.True(t, in.Support.CreatedAt.IsZero())
}

func TestDecode_RejectsBothIdentifiers(t *testing.T) {
	raw := `{"contactId":1,"ticketId":2,"senderId":3}`

	_, err := Decode(UserTopic("1"), []byte(raw))
	assert.ErrorIs(t, err, ErrAmbiguousPayload)
}

func TestDecode_RejectsNeitherIdentifier(t *testing.T) {
	raw := `{"senderId":3,"content":"orphan"}`

	_, err := Decode(UserTopic("1"), []byte(raw))
	assert.ErrorIs(t, err, ErrUnknownPayload)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode(UserTopic("1"), []byte(`{"contactId":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownPayload)
}

func TestDecode_TicketSnapshotOnUserTopic(t *testing.T) {
	raw := `{"id":12,"subject":"Broken heater","status":"OPEN","updatedAt":1714557600000}`

	in, err := Decode(UserTopic("1"), []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, KindTicketUpdate, in.Kind)
	require.NotNil(t, in.Ticket)
	assert.Equal(t, "Broken heater", in.Ticket.Subject)
	assert.Equal(t, int64(1714557600000), in.Ticket.UpdatedAt.UnixMilli())
}

func TestDecode_AdminTopicsUseTopicForKind(t *testing.T) {
	in, err := Decode(AdminCertificationsTopic, []byte(`{"id":4,"status":"PENDING","applicantName":"Li"}`))
	require.NoError(t, err)
	assert.Equal(t, KindCertification, in.Kind)
	assert.Equal(t, "Li", in.Certification.ApplicantName)

	in, err = Decode(AdminSupportTopic, []byte(`{"id":8,"subject":"Refund"}`))
	require.NoError(t, err)
	assert.Equal(t, KindTicketUpdate, in.Kind)
	assert.Equal(t, AdminSupportTopic, in.Topic)
}

func TestDecode_ExplicitKindMustMatchIdentifier(t *testing.T) {
	_, err := Decode(UserTopic("1"), []byte(`{"kind":"chat","ticketId":2}`))
	assert.ErrorIs(t, err, ErrUnknownPayload)

	in, err := Decode(UserTopic("1"), []byte(`{"kind":"SUPPORT","ticketId":2}`))
	require.NoError(t, err)
	assert.Equal(t, KindSupport, in.Kind)
}

func TestID_UnmarshalVariants(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":123,"b":" x-1 ","c":null}`), &v))
	assert.Equal(t, ID("123"), v.A)
	assert.Equal(t, ID("x-1"), v.B)
	assert.True(t, v.C.IsZero())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":123,"b":"x-1","c":null}`, string(out))
}

func TestTime_UnmarshalVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T10:00:00.5Z"`, time.Date(2024, 5, 1, 10, 0, 0, 5e8, time.UTC)},
		{"millis", `1714557600000`, time.UnixMilli(1714557600000)},
		{"seconds with fraction", `1714557600.25`, time.Unix(1714557600, 25e7)},
		{"seconds with millis", `1714557900.001`, time.Unix(1714557900, 1e6)},
		{"seconds with nanos", `1714557900.007000001`, time.Unix(1714557900, 7000001)},
		{"quoted seconds", `"1714557900.007"`, time.Unix(1714557900, 7e6)},
		{"exponent", `1.7145579e9`, time.Unix(1714557900, 0)},
		{"negative", `-5`, time.Time{}},
		{"local datetime", `"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"garbage string", `"soon"`, time.Time{}},
		{"null", `null`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.True(t, tt.want.Equal(got.Time), "got %v want %v", got.Time, tt.want)
		})
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "/topic/contacts/7", ContactTopic("7"))
	assert.Equal(t, "/app/contacts/7/messages", ContactSendDestination("7"))
	assert.Equal(t, "/topic/support/9", SupportTopic("9"))
	assert.Equal(t, "/app/support/9/messages", SupportSendDestination("9"))
	assert.Equal(t, "/topic/users/3", UserTopic("3"))
	assert.True(t, IsUserTopic(UserTopic("3")))
	assert.False(t, IsUserTopic(AdminSupportTopic))
}

func TestTime_FractionalSecondsKeepMillis(t *testing.T) {
	for ms := int64(0); ms < 1000; ms++ {
		raw := fmt.Sprintf("1714557900.%03d", ms)
		var got Time
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		require.Equal(t, int64(1714557900000)+ms, got.UnixMilli(), raw)
	}
}

func TestTime_RejectsMalformedNumber(t *testing.T) {
	var got Time
	assert.Error(t, got.UnmarshalJSON([]byte(`12.x`)))
}
