// Package autoreply evaluates inbound messages against an ordered rule
// set and sends at most one reply through the dispatch queue.
package autoreply

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/config"
	"whatsapp-dispatch/internal/dispatch"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/template"
)

// Dispatcher is the slice of the dispatch queue the matcher needs.
type Dispatcher interface {
	Enqueue(ctx context.Context, req dispatch.Request) (string, error)
}

type Matcher struct {
	store store.Store
	queue Dispatcher

	// firstMessageScope selects whether the "First Message" trigger counts
	// inbound logs across all connections or only the current one.
	firstMessageScope string
}

func NewMatcher(s store.Store, queue Dispatcher, firstMessageScope string) *Matcher {
	return &Matcher{store: s, queue: queue, firstMessageScope: firstMessageScope}
}

// Match evaluates active rules for the connection in ascending priority
// order and stops at the first satisfied rule. On a match it sends the
// rule's reply; a send failure does not invalidate the match result.
func (m *Matcher) Match(ctx context.Context, conn *models.Connection, from *models.Contact, messageText string) (*models.AutoReplyRule, error) {
	rules, err := m.store.FindActiveAutoReplyRules(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	for i := range rules {
		rule := &rules[i]
		matched, err := m.matches(ctx, rule, conn, from, messageText)
		if err != nil {
			log.Error().Err(err).Str("rule", rule.Name).Msg("evaluating auto-reply rule")
			continue
		}
		if !matched {
			continue
		}

		if err := m.sendReply(ctx, rule, conn, from); err != nil {
			log.Error().Err(err).Str("rule", rule.Name).Str("contact", from.PhoneNumber).
				Msg("sending auto-reply")
		}
		return rule, nil
	}
	return nil, nil
}

func (m *Matcher) matches(ctx context.Context, rule *models.AutoReplyRule, conn *models.Connection, from *models.Contact, messageText string) (bool, error) {
	switch rule.TriggerType {
	case models.TriggerAllMessages:
		return true, nil

	case models.TriggerKeyword:
		return strings.Contains(strings.ToLower(messageText), strings.ToLower(rule.TriggerValue)), nil

	case models.TriggerPattern:
		re, err := regexp.Compile("(?i)" + rule.TriggerValue)
		if err != nil {
			return false, err
		}
		return re.MatchString(messageText), nil

	case models.TriggerFirstMessage:
		scope := ""
		if m.firstMessageScope == config.FirstMessageScopeConnection {
			scope = conn.ID
		}
		count, err := m.store.CountInboundMessages(ctx, from.PhoneNumber, scope)
		if err != nil {
			return false, err
		}
		// The triggering inbound message is already logged, so the
		// contact's first-ever message yields a count of exactly 1.
		return count == 1, nil

	default:
		log.Warn().Str("trigger_type", rule.TriggerType).Str("rule", rule.Name).
			Msg("unknown auto-reply trigger type")
		return false, nil
	}
}

func (m *Matcher) sendReply(ctx context.Context, rule *models.AutoReplyRule, conn *models.Connection, to *models.Contact) error {
	req := dispatch.Request{
		Connection: conn,
		Recipient:  to.PhoneNumber,
	}

	if rule.ReplyTemplate != "" {
		tmpl, err := m.store.GetTemplate(ctx, rule.ReplyTemplate)
		if err != nil {
			return err
		}
		context := map[string]string{
			"name":  to.Name,
			"phone": to.PhoneNumber,
		}
		req.Payload = template.BuildMessage(tmpl, context)
		req.MessageType = tmpl.TemplateType
		req.Content = template.Render(tmpl.Content, context)
		req.MediaURL = tmpl.MediaURL
		req.TemplateID = tmpl.ID
	} else {
		req.Payload = template.TextMessage(rule.CustomReply)
		req.MessageType = models.TypeText
		req.Content = rule.CustomReply
	}

	_, err := m.queue.Enqueue(ctx, req)
	return err
}
