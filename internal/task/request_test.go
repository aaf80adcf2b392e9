package task

import (
	"errors"
	"testing"

	"github.com/TsubakiDev/btr/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grabFixture() *GrabRequest {
	return &GrabRequest{
		ProjectID: "85939",
		ScreenID:  "178712",
		TicketID:  "548731",
		Count:     2,
		IDBind:    BindPerSeat,
		Buyers: []Buyer{
			{ID: 1, Name: "alice", Tel: "13800000001"},
			{ID: 2, Name: "bob", Tel: "13800000002"},
		},
		Mode:    ModeDirect,
		Session: session.NewHandle(10001, session.Credentials{Cookie: "SESSDATA=x"}, nil),
	}
}

func TestGrabRequestValid(t *testing.T) {
	require.NoError(t, grabFixture().Validate())
}

func TestGrabRequestBuyerCountMustMatch(t *testing.T) {
	r := grabFixture()
	r.Buyers = r.Buyers[:1]
	err := r.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Contains(t, err.Error(), "buyer count")

	// Matching count passes again.
	r.Count = 1
	assert.NoError(t, r.Validate())
}

func TestGrabRequestSingleSelect(t *testing.T) {
	r := grabFixture()
	r.IDBind = BindSingle
	r.Buyers = r.Buyers[:1]
	assert.NoError(t, r.Validate())

	// Single-select allows count > buyers; only cardinality one is enforced.
	r.Count = 4
	assert.NoError(t, r.Validate())

	r.Buyers = nil
	assert.Error(t, r.Validate())
}

func TestGrabRequestNoBindNeedsContact(t *testing.T) {
	r := grabFixture()
	r.IDBind = BindNone
	r.Buyers = nil
	assert.Error(t, r.Validate())

	r.Contact = Contact{Name: "carol", Tel: "13800000003"}
	assert.NoError(t, r.Validate())
}

func TestGrabRequestCountBounds(t *testing.T) {
	r := grabFixture()
	r.Count = 0
	assert.Error(t, r.Validate())

	r = grabFixture()
	r.Count = 11
	assert.Error(t, r.Validate())
}

func TestGrabRequestNeedsSession(t *testing.T) {
	r := grabFixture()
	r.Session = nil
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
}

func TestNotifyRequestValidation(t *testing.T) {
	assert.Error(t, (&NotifyRequest{}).Validate())
	assert.NoError(t, (&NotifyRequest{Title: "hi"}).Validate())
	assert.NoError(t, (&NotifyRequest{Message: "body"}).Validate())
}
