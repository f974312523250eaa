package creation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
	"github.com/blues/cfc/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "0x00000000000000000000000000000000000000aa"

type fakeCreator struct {
	err  error
	reqs []contract.NewCampaign
}

func (f *fakeCreator) CreateCampaign(_ context.Context, req contract.NewCampaign) (*chain.Receipt, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &chain.Receipt{TxHash: "0x01"}, nil
}

type staticAccount string

func (s staticAccount) Account() string { return string(s) }

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh(context.Context) (*campaign.Snapshot, error) {
	c.n++
	return &campaign.Snapshot{}, nil
}

var now = time.Unix(1_700_000_000, 0)

func validForm() Form {
	return Form{
		Title:       "Clean water",
		Description: "Wells for the village",
		Target:      "2.5",
		Deadline:    now.Unix() + 86400,
		Image:       "https://gateway.pinata.cloud/ipfs/Qm123",
	}
}

func newWorkflow(creator *fakeCreator, account string, refresher *countingRefresher, feed *notify.Feed) *Workflow {
	return NewWorkflow(creator, staticAccount(account), refresher, unit.Sun,
		WithClock(func() time.Time { return now }), WithNotifier(feed))
}

func TestSubmitSuccess(t *testing.T) {
	creator, refresher, feed := &fakeCreator{}, &countingRefresher{}, notify.NewFeed(5)
	w := newWorkflow(creator, owner, refresher, feed)
	w.SetForm(validForm())

	receipt, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x01", receipt.TxHash)

	require.Len(t, creator.reqs, 1)
	req := creator.reqs[0]
	assert.Equal(t, owner, req.Owner)
	assert.Equal(t, "2500000", req.Target.String())
	assert.Equal(t, now.Unix()+86400, req.Deadline)

	assert.Equal(t, Form{}, w.Form())
	assert.Equal(t, 1, refresher.n)
	assert.Equal(t, notify.SeveritySuccess, feed.Recent()[0].Severity)
}

func TestSubmitRejectsInvalidForms(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
	}{
		{"empty title", func(f *Form) { f.Title = "  " }},
		{"zero target", func(f *Form) { f.Target = "0" }},
		{"non-numeric target", func(f *Form) { f.Target = "lots" }},
		{"deadline now", func(f *Form) { f.Deadline = now.Unix() }},
		{"deadline past", func(f *Form) { f.Deadline = now.Unix() - 1 }},
		{"empty image", func(f *Form) { f.Image = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator, refresher := &fakeCreator{}, &countingRefresher{}
			w := newWorkflow(creator, owner, refresher, notify.NewFeed(5))
			form := validForm()
			tt.mutate(&form)
			w.SetForm(form)

			_, err := w.Submit(context.Background())
			assert.ErrorIs(t, err, ErrInvalidForm)
			assert.Empty(t, creator.reqs)
			assert.Zero(t, refresher.n)
			assert.Equal(t, form, w.Form())
		})
	}
}

func TestSubmitRequiresAccount(t *testing.T) {
	creator := &fakeCreator{}
	w := newWorkflow(creator, "", &countingRefresher{}, notify.NewFeed(5))
	w.SetForm(validForm())

	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
	assert.Empty(t, creator.reqs)
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	creator, refresher, feed := &fakeCreator{err: chain.ErrRejected}, &countingRefresher{}, notify.NewFeed(5)
	w := newWorkflow(creator, owner, refresher, feed)
	w.SetForm(validForm())

	_, err := w.Submit(context.Background())
	assert.True(t, errors.Is(err, chain.ErrRejected))
	assert.Equal(t, validForm(), w.Form())
	assert.Zero(t, refresher.n)
	assert.Equal(t, notify.SeverityError, feed.Recent()[0].Severity)
}
