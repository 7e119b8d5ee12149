package whatsapp

// SafeReturnPayload is the quick-reply button a traveller taps when back from a trip.
const SafeReturnPayload = "Yes, I'm Back & Safe"

// Payload is the WhatsApp Business Cloud webhook body. Only the fields the
// safe-return flow reads are modelled.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account block of the webhook body.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one notification; Field is "messages" for inbound traffic.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages and contacts of a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

// Metadata identifies the receiving business phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile; WaID is their WhatsApp id.
type Contact struct {
	WaID string `json:"wa_id"`
}

// Message is one inbound message. Button is set for quick-reply taps.
type Message struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Context   *MessageContext `json:"context,omitempty"`
	Button    *Button         `json:"button,omitempty"`
}

// MessageContext points at the outbound message being replied to.
type MessageContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Button is the quick-reply the user tapped.
type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// FirstMessage returns the first message of the first change, with its change value.
func (p *Payload) FirstMessage() (*Message, *Value, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, nil, false
	}
	v := &p.Entry[0].Changes[0].Value
	if len(v.Messages) == 0 {
		return nil, nil, false
	}
	return &v.Messages[0], v, true
}

// IsSafeReturn reports whether m is the safe-return button reply.
func (m *Message) IsSafeReturn() bool {
	return m.Button != nil && m.Button.Payload == SafeReturnPayload
}

// ReplyToID is the id of the message being answered, falling back to the message's own id.
func (m *Message) ReplyToID() string {
	if m.Context != nil && m.Context.ID != "" {
		return m.Context.ID
	}
	return m.ID
}
