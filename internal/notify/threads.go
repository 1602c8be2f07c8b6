// ABOUTME: Per-thread subscriptions and outbound messages for an open chat or ticket panel
// ABOUTME: Thread frames go to the panel handler only, never to the notification pipeline

package notify

import (
	"encoding/json"
	"fmt"

	"github.com/2389/house-notify/internal/event"
	"github.com/2389/house-notify/internal/transport"
)

type chatRequest struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}

type supportRequest struct {
	Content        string   `json:"content"`
	AttachmentURLs []string `json:"attachmentUrls,omitempty"`
}

// SendChat publishes a chat message to contact id. Delivery is not
// confirmed; the server echoes it back on the user topic.
func (c *Coordinator) SendChat(id, content string, images []string) error {
	tr, err := c.liveTransport()
	if err != nil {
		return err
	}
	if err := tr.Publish(event.ContactSendDestination(event.ID(id)), chatRequest{Content: content, ImageURLs: images}); err != nil {
		return fmt.Errorf("send chat to %s: %w", id, err)
	}
	return nil
}

// SendSupport publishes a message to support ticket id.
func (c *Coordinator) SendSupport(id, content string, attachments []string) error {
	tr, err := c.liveTransport()
	if err != nil {
		return err
	}
	if err := tr.Publish(event.SupportSendDestination(event.ID(id)), supportRequest{Content: content, AttachmentURLs: attachments}); err != nil {
		return fmt.Errorf("send support message to %s: %w", id, err)
	}
	return nil
}

func (c *Coordinator) liveTransport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.tr == nil {
		return nil, ErrNotStarted
	}
	return c.tr, nil
}

// SubscribeConversation delivers every message posted in contact id to
// handler until UnsubscribeConversation or Teardown. A second call for the
// same id replaces the handler.
func (c *Coordinator) SubscribeConversation(id string, handler func(event.ChatMessage)) error {
	return c.subscribeThread(event.ContactTopic(event.ID(id)), func(body []byte) {
		var msg event.ChatMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			c.logger.Warn("dropping malformed thread message", "contact_id", id, "error", err)
			return
		}
		handler(msg)
	})
}

// UnsubscribeConversation stops the thread subscription for contact id.
func (c *Coordinator) UnsubscribeConversation(id string) {
	c.unsubscribeThread(event.ContactTopic(event.ID(id)))
}

// SubscribeTicket delivers every message posted in support ticket id to handler.
func (c *Coordinator) SubscribeTicket(id string, handler func(event.SupportMessage)) error {
	return c.subscribeThread(event.SupportTopic(event.ID(id)), func(body []byte) {
		var msg event.SupportMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			c.logger.Warn("dropping malformed thread message", "ticket_id", id, "error", err)
			return
		}
		handler(msg)
	})
}

// UnsubscribeTicket stops the thread subscription for ticket id.
func (c *Coordinator) UnsubscribeTicket(id string) {
	c.unsubscribeThread(event.SupportTopic(event.ID(id)))
}

func (c *Coordinator) subscribeThread(topic string, deliver func([]byte)) error {
	c.mu.Lock()
	if !c.active || c.tr == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	tr, gen := c.tr, c.gen
	old := c.threadSubs[topic]
	delete(c.threadSubs, topic)
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}

	h := tr.Subscribe(topic, func(_ string, body []byte) {
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if !stale {
			deliver(body)
		}
	})

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		h.Unsubscribe()
		return ErrInterrupted
	}
	if prev := c.threadSubs[topic]; prev != nil {
		defer prev.Unsubscribe()
	}
	c.threadSubs[topic] = h
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) unsubscribeThread(topic string) {
	c.mu.Lock()
	h := c.threadSubs[topic]
	delete(c.threadSubs, topic)
	c.mu.Unlock()

	if h != nil {
		h.Unsubscribe()
	}
}

// ThreadSubscriptions returns the number of open thread subscriptions.
func (c *Coordinator) ThreadSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.threadSubs)
}

var _ Transport = (*transport.Session)(nil)
