package projectactor

import (
	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/message"
)

type messageSendParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Thread string `json:"thread,omitempty"`
	Body   string `json:"body"`
}

func (a *Actor) handleMessageSend(rc reqContext, raw []byte) handlerResult {
	var p messageSendParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if p.To == "" || p.Body == "" {
		return fail(domain.NewError(domain.ErrInvalidRequest, "to and body are required"))
	}

	ib, found := a.inboxes[p.To]
	if !found {
		ib = newInboxFor(a.cfg)
		a.inboxes[p.To] = ib
	}

	a.msgSeq++
	m := message.Message{
		Seq:    int64(a.msgSeq),
		From:   p.From,
		To:     p.To,
		Thread: p.Thread,
		Body:   p.Body,
		SentAt: rc.now,
	}
	ib.Append(m)

	return ok(m, pendingEvent{kind: event.KindMessage, payload: m})
}

type messageInboxParams struct {
	Agent string `json:"agent"`
	Since int64  `json:"since,omitempty"`
}

func (a *Actor) handleMessageInbox(rc reqContext, raw []byte) handlerResult {
	var p messageInboxParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	ib, found := a.inboxes[p.Agent]
	if !found {
		return ok([]message.Message{})
	}
	return ok(ib.Since(p.Since))
}

type broadcastParams struct {
	Channel string `json:"channel,omitempty"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
}

func (a *Actor) handleBroadcast(rc reqContext, raw []byte) handlerResult {
	var p broadcastParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if p.Body == "" {
		return fail(domain.NewError(domain.ErrInvalidRequest, "body is required"))
	}
	payload := map[string]string{"channel": p.Channel, "body": p.Body, "from": p.From}
	return ok(payload, pendingEvent{kind: event.KindChat, payload: payload})
}
