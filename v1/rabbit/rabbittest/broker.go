// Package rabbittest provides an in-memory AMQP broker for tests.
//
// Broker.Dial satisfies rabbit.Dialer, so a Session (and everything built on
// it) can run against the broker without a RabbitMQ server:
//
//	b := rabbittest.NewBroker()
//	s := rabbit.NewSession(cfg).WithDialer(b.Dial)
//
// The broker implements direct and fanout routing, the default exchange,
// idempotent declarations with precondition checks, consumers with auto or
// manual acknowledgement, publisher confirms, mandatory returns and flow
// control. Failures can be injected per operation and live connections can
// be dropped to exercise recovery paths.
package rabbittest

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fayulogger/mqlog/v1/rabbit"
)

// Operations that accept injected failures.
const (
	OpDial            = "dial"
	OpChannel         = "channel.open"
	OpQos             = "basic.qos"
	OpConfirm         = "confirm.select"
	OpExchangeDeclare = "exchange.declare"
	OpQueueDeclare    = "queue.declare"
	OpQueueBind       = "queue.bind"
	OpConsume         = "basic.consume"
	OpPublish         = "basic.publish"
)

// Message is a publish recorded by the broker.
type Message struct {
	Exchange   string
	Key        string
	Mandatory  bool
	Publishing amqp.Publishing
}

// Binding links a queue to an exchange under a routing key.
type Binding struct {
	Exchange string
	Key      string
}

// ExchangeInfo describes a declared exchange.
type ExchangeInfo struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
}

// QueueInfo describes a declared queue.
type QueueInfo struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Bindings   []Binding
	Ready      int
	Consumers  int
}

var (
	_ rabbit.AMQPConnection = (*Conn)(nil)
	_ rabbit.AMQPChannel    = (*Channel)(nil)
	_ amqp.Acknowledger     = (*Channel)(nil)
	_ rabbit.Dialer         = (*Broker)(nil).Dial
)

type queue struct {
	info      QueueInfo
	messages  []amqp.Delivery
	consumers []*consumer
	next      int
}

type consumer struct {
	tag     string
	queue   string
	ch      *Channel
	autoAck bool
	pump    *pump[amqp.Delivery]
}

// Broker is an in-memory AMQP broker. The zero value is not usable; call NewBroker.
type Broker struct {
	mu sync.Mutex

	exchanges map[string]ExchangeInfo
	queues    map[string]*queue
	conns     []*Conn

	published []Message
	rejected  []amqp.Delivery
	acked     int

	dials      int
	lastURL    string
	lastConfig amqp.Config

	down     error
	failures map[string]error
	nack     bool

	// hold blocks dials while non-nil; held counts the dials waiting on it
	hold chan struct{}
	held int
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		exchanges: make(map[string]ExchangeInfo),
		queues:    make(map[string]*queue),
		failures:  make(map[string]error),
	}
}

// Dial opens a connection to the broker. It satisfies rabbit.Dialer.
func (b *Broker) Dial(ctx context.Context, url string, cfg amqp.Config) (rabbit.AMQPConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.waitHold(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	b.lastURL = url
	b.lastConfig = cfg

	if b.down != nil {
		return nil, b.down
	}
	if err := b.takeFailure(OpDial); err != nil {
		return nil, err
	}

	c := &Conn{broker: b}
	b.conns = append(b.conns, c)
	return c, nil
}

// Hold makes every following dial block until Release is called or the
// dial context is done.
func (b *Broker) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold == nil {
		b.hold = make(chan struct{})
	}
}

// Release lets held and following dials proceed.
func (b *Broker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold != nil {
		close(b.hold)
		b.hold = nil
	}
}

// Held returns the number of dials currently blocked by Hold.
func (b *Broker) Held() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

func (b *Broker) waitHold(ctx context.Context) error {
	b.mu.Lock()
	hold := b.hold
	if hold == nil {
		b.mu.Unlock()
		return nil
	}
	b.held++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.held--
		b.mu.Unlock()
	}()

	select {
	case <-hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Down makes every following dial fail with err until Up is called.
func (b *Broker) Down(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = err
}

// Up lets dials succeed again.
func (b *Broker) Up() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = nil
}

// FailNext makes the next call of op fail with err.
// Channel level failures of amqp.Error type also close the channel, as RabbitMQ does.
func (b *Broker) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = err
}

// NackPublishes makes publisher confirms negative.
func (b *Broker) NackPublishes(nack bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nack = nack
}

// DropConnections closes every live connection with err, as a broker restart would.
func (b *Broker) DropConnections(err *amqp.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		if !c.closed {
			c.shutdownLocked(err)
		}
	}
}

// SetFlow sends a flow notification to every open channel.
func (b *Broker) SetFlow(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		for _, ch := range c.channels {
			if ch.closed {
				continue
			}
			for _, p := range ch.flows {
				p.push(active)
			}
		}
	}
}

// Dials returns the number of dial attempts.
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// LastURL returns the URL of the last dial.
func (b *Broker) LastURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastURL
}

// LastConfig returns the amqp.Config of the last dial.
func (b *Broker) LastConfig() amqp.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastConfig
}

// OpenConnections returns the number of connections not yet closed.
func (b *Broker) OpenConnections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		if !c.closed {
			n++
		}
	}
	return n
}

// Published returns every message accepted by the broker, in order.
func (b *Broker) Published() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.published...)
}

// Rejected returns deliveries nacked or rejected without requeue.
func (b *Broker) Rejected() []amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]amqp.Delivery(nil), b.rejected...)
}

// Acked returns the number of acknowledged deliveries.
func (b *Broker) Acked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acked
}

// Exchange returns the declared exchange name.
func (b *Broker) Exchange(name string) (ExchangeInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ex, ok := b.exchanges[name]
	return ex, ok
}

// Queue returns the declared queue name.
func (b *Broker) Queue(name string) (QueueInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return QueueInfo{}, false
	}
	info := q.info
	info.Bindings = append([]Binding(nil), q.info.Bindings...)
	info.Ready = len(q.messages)
	info.Consumers = len(q.consumers)
	return info, true
}

// Queues returns the names of all declared queues.
func (b *Broker) Queues() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	return names
}

func (b *Broker) takeFailure(op string) error {
	err, ok := b.failures[op]
	if !ok {
		return nil
	}
	delete(b.failures, op)
	return err
}

// route returns the queues a publish to exchange with key reaches.
func (b *Broker) route(exchange, key string) []*queue {
	if exchange == "" {
		if q, ok := b.queues[key]; ok {
			return []*queue{q}
		}
		return nil
	}

	kind := b.exchanges[exchange].Kind
	var matched []*queue
	for _, q := range b.queues {
		for _, bind := range q.info.Bindings {
			if bind.Exchange != exchange {
				continue
			}
			if kind == amqp.ExchangeFanout || bind.Key == key {
				matched = append(matched, q)
				break
			}
		}
	}
	return matched
}

// enqueue hands d to the next consumer of q or stores it.
func (b *Broker) enqueue(q *queue, d amqp.Delivery) {
	if len(q.consumers) == 0 {
		q.messages = append(q.messages, d)
		return
	}
	c := q.consumers[q.next%len(q.consumers)]
	q.next++
	b.deliver(c, d)
}

func (b *Broker) deliver(c *consumer, d amqp.Delivery) {
	c.ch.deliveryTag++
	d.DeliveryTag = c.ch.deliveryTag
	d.ConsumerTag = c.tag
	d.Acknowledger = c.ch
	if !c.autoAck {
		c.ch.unacked[d.DeliveryTag] = unacked{queue: c.queue, delivery: d}
	}
	c.pump.push(d)
}

func (b *Broker) requeue(name string, d amqp.Delivery) {
	q, ok := b.queues[name]
	if !ok {
		return
	}
	d.Redelivered = true
	d.Acknowledger = nil
	b.enqueue(q, d)
}

// Conn is a connection to the in-memory broker.
type Conn struct {
	broker   *Broker
	closed   bool
	closes   []chan *amqp.Error
	channels []*Channel
}

// Channel opens a channel.
func (c *Conn) Channel() (rabbit.AMQPChannel, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	if err := b.takeFailure(OpChannel); err != nil {
		return nil, err
	}

	ch := &Channel{conn: c, unacked: make(map[uint64]unacked)}
	c.channels = append(c.channels, ch)
	return ch, nil
}

// NotifyClose registers a listener for connection shutdown.
func (c *Conn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.closes = append(c.closes, receiver)
	return receiver
}

// IsClosed reports whether the connection is closed.
func (c *Conn) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

// Close closes the connection and its channels.
func (c *Conn) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.shutdownLocked(nil)
	return nil
}

func (c *Conn) shutdownLocked(err *amqp.Error) {
	c.closed = true
	for _, ch := range c.channels {
		if !ch.closed {
			ch.shutdownLocked(err)
		}
	}
	notifyClosed(c.closes, err)
	c.closes = nil
}

func notifyClosed(receivers []chan *amqp.Error, err *amqp.Error) {
	for _, r := range receivers {
		if err != nil {
			select {
			case r <- err:
			default:
			}
		}
		close(r)
	}
}

type unacked struct {
	queue    string
	delivery amqp.Delivery
}

// Channel is a channel on a Conn. It also acknowledges the deliveries it hands out.
type Channel struct {
	conn *Conn

	closed      bool
	confirm     bool
	prefetch    int
	publishSeq  uint64
	deliveryTag uint64
	unacked     map[uint64]unacked
	consumers   []*consumer

	closes   []chan *amqp.Error
	returns  []*pump[amqp.Return]
	flows    []*pump[bool]
	confirms []*pump[amqp.Confirmation]
}

func (ch *Channel) broker() *Broker {
	return ch.conn.broker
}

// fail applies an injected failure. amqp errors close the channel like a
// channel exception would. Callers hold the broker lock.
func (ch *Channel) fail(op string) error {
	err := ch.broker().takeFailure(op)
	if err == nil {
		return nil
	}
	if amqpErr, ok := err.(*amqp.Error); ok {
		ch.shutdownLocked(amqpErr)
	}
	return err
}

func (ch *Channel) exception(code int, format string, args ...interface{}) error {
	err := &amqp.Error{Code: code, Reason: fmt.Sprintf(format, args...), Server: true}
	ch.shutdownLocked(err)
	return err
}

// Qos records the prefetch count.
func (ch *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.fail(OpQos); err != nil {
		return err
	}
	ch.prefetch = prefetchCount
	return nil
}

// Prefetch returns the prefetch count set through Qos.
func (ch *Channel) Prefetch() int {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	return ch.prefetch
}

// Confirm puts the channel in confirm mode.
func (ch *Channel) Confirm(noWait bool) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.fail(OpConfirm); err != nil {
		return err
	}
	ch.confirm = true
	return nil
}

// ExchangeDeclare declares an exchange. Redeclaring with different
// properties fails with PRECONDITION_FAILED and closes the channel.
func (ch *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.fail(OpExchangeDeclare); err != nil {
		return err
	}

	if kind != amqp.ExchangeDirect && kind != amqp.ExchangeFanout {
		return ch.exception(amqp.CommandInvalid, "COMMAND_INVALID - unknown exchange type '%s'", kind)
	}

	want := ExchangeInfo{Name: name, Kind: kind, Durable: durable, AutoDelete: autoDelete}
	if have, ok := b.exchanges[name]; ok {
		if have != want {
			return ch.exception(amqp.PreconditionFailed, "PRECONDITION_FAILED - inequivalent arg for exchange '%s'", name)
		}
		return nil
	}
	b.exchanges[name] = want
	return nil
}

// QueueDeclare declares a queue. Redeclaring with different properties
// fails with PRECONDITION_FAILED and closes the channel.
func (ch *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if err := ch.fail(OpQueueDeclare); err != nil {
		return amqp.Queue{}, err
	}

	if name == "" {
		name = fmt.Sprintf("amq.gen-%d", time.Now().UnixNano())
	}

	if q, ok := b.queues[name]; ok {
		if q.info.Durable != durable || q.info.AutoDelete != autoDelete || q.info.Exclusive != exclusive {
			return amqp.Queue{}, ch.exception(amqp.PreconditionFailed, "PRECONDITION_FAILED - inequivalent arg 'durable' for queue '%s'", name)
		}
		return amqp.Queue{Name: name, Messages: len(q.messages), Consumers: len(q.consumers)}, nil
	}

	b.queues[name] = &queue{info: QueueInfo{Name: name, Durable: durable, AutoDelete: autoDelete, Exclusive: exclusive}}
	return amqp.Queue{Name: name}, nil
}

// QueueBind binds a queue. Binding twice is a no-op.
func (ch *Channel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.fail(OpQueueBind); err != nil {
		return err
	}

	q, ok := b.queues[name]
	if !ok {
		return ch.exception(amqp.NotFound, "NOT_FOUND - no queue '%s'", name)
	}
	if _, ok := b.exchanges[exchange]; !ok {
		return ch.exception(amqp.NotFound, "NOT_FOUND - no exchange '%s'", exchange)
	}

	bind := Binding{Exchange: exchange, Key: key}
	for _, existing := range q.info.Bindings {
		if existing == bind {
			return nil
		}
	}
	q.info.Bindings = append(q.info.Bindings, bind)
	return nil
}

// Consume starts a consumer. Messages already waiting in the queue are delivered first.
func (ch *Channel) Consume(queueName, consumerTag string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return nil, amqp.ErrClosed
	}
	if err := ch.fail(OpConsume); err != nil {
		return nil, err
	}

	q, ok := b.queues[queueName]
	if !ok {
		return nil, ch.exception(amqp.NotFound, "NOT_FOUND - no queue '%s'", queueName)
	}
	if consumerTag == "" {
		consumerTag = fmt.Sprintf("ctag-%d", time.Now().UnixNano())
	}
	for _, c := range ch.consumers {
		if c.tag == consumerTag {
			return nil, ch.exception(amqp.NotAllowed, "NOT_ALLOWED - attempt to reuse consumer tag '%s'", consumerTag)
		}
	}

	out := make(chan amqp.Delivery)
	c := &consumer{tag: consumerTag, queue: queueName, ch: ch, autoAck: autoAck, pump: newPump(out)}
	ch.consumers = append(ch.consumers, c)
	q.consumers = append(q.consumers, c)

	waiting := q.messages
	q.messages = nil
	for _, d := range waiting {
		b.enqueue(q, d)
	}
	return out, nil
}

// PublishWithContext routes msg. Publishing to a missing exchange closes the
// channel with NOT_FOUND, like RabbitMQ.
func (ch *Channel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.fail(OpPublish); err != nil {
		return err
	}

	if exchange != "" {
		if _, ok := b.exchanges[exchange]; !ok {
			_ = ch.exception(amqp.NotFound, "NOT_FOUND - no exchange '%s'", exchange)
			return nil
		}
	}

	msg.Body = append([]byte(nil), msg.Body...)
	b.published = append(b.published, Message{Exchange: exchange, Key: key, Mandatory: mandatory, Publishing: msg})

	targets := b.route(exchange, key)
	for _, q := range targets {
		b.enqueue(q, amqp.Delivery{
			Headers:         msg.Headers,
			ContentType:     msg.ContentType,
			ContentEncoding: msg.ContentEncoding,
			DeliveryMode:    msg.DeliveryMode,
			Priority:        msg.Priority,
			CorrelationId:   msg.CorrelationId,
			ReplyTo:         msg.ReplyTo,
			Expiration:      msg.Expiration,
			MessageId:       msg.MessageId,
			Timestamp:       msg.Timestamp,
			Type:            msg.Type,
			UserId:          msg.UserId,
			AppId:           msg.AppId,
			Exchange:        exchange,
			RoutingKey:      key,
			Body:            msg.Body,
		})
	}

	if mandatory && len(targets) == 0 {
		ret := amqp.Return{
			ReplyCode:   amqp.NoRoute,
			ReplyText:   "NO_ROUTE",
			Exchange:    exchange,
			RoutingKey:  key,
			ContentType: msg.ContentType,
			MessageId:   msg.MessageId,
			Timestamp:   msg.Timestamp,
			Type:        msg.Type,
			AppId:       msg.AppId,
			Headers:     msg.Headers,
			Body:        msg.Body,
		}
		for _, p := range ch.returns {
			p.push(ret)
		}
	}

	if ch.confirm {
		ch.publishSeq++
		conf := amqp.Confirmation{DeliveryTag: ch.publishSeq, Ack: !b.nack}
		for _, p := range ch.confirms {
			p.push(conf)
		}
	}
	return nil
}

// NotifyPublish registers a listener for publisher confirms.
func (ch *Channel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		close(confirm)
		return confirm
	}
	ch.confirms = append(ch.confirms, newPump(confirm))
	return confirm
}

// NotifyClose registers a listener for channel shutdown.
func (ch *Channel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		close(c)
		return c
	}
	ch.closes = append(ch.closes, c)
	return c
}

// NotifyReturn registers a listener for returned mandatory publishes.
func (ch *Channel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		close(c)
		return c
	}
	ch.returns = append(ch.returns, newPump(c))
	return c
}

// NotifyFlow registers a listener for flow control.
func (ch *Channel) NotifyFlow(c chan bool) chan bool {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		close(c)
		return c
	}
	ch.flows = append(ch.flows, newPump(c))
	return c
}

// Close closes the channel. Unacknowledged deliveries are requeued.
func (ch *Channel) Close() error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	ch.shutdownLocked(nil)
	return nil
}

func (ch *Channel) shutdownLocked(err *amqp.Error) {
	b := ch.broker()
	ch.closed = true

	for _, c := range ch.consumers {
		if q, ok := b.queues[c.queue]; ok {
			for i, qc := range q.consumers {
				if qc == c {
					q.consumers = append(q.consumers[:i], q.consumers[i+1:]...)
					break
				}
			}
		}
		c.pump.stop()
	}
	ch.consumers = nil

	pending := ch.unacked
	ch.unacked = make(map[uint64]unacked)
	for tag := uint64(1); tag <= ch.deliveryTag; tag++ {
		if u, ok := pending[tag]; ok {
			b.requeue(u.queue, u.delivery)
		}
	}

	for _, p := range ch.returns {
		p.stop()
	}
	for _, p := range ch.flows {
		p.stop()
	}
	for _, p := range ch.confirms {
		p.stop()
	}
	ch.returns, ch.flows, ch.confirms = nil, nil, nil

	notifyClosed(ch.closes, err)
	ch.closes = nil
}

// Ack implements amqp.Acknowledger.
func (ch *Channel) Ack(tag uint64, multiple bool) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	for _, t := range ch.settleTags(tag, multiple) {
		delete(ch.unacked, t)
		b.acked++
	}
	return nil
}

// Nack implements amqp.Acknowledger.
func (ch *Channel) Nack(tag uint64, multiple, requeue bool) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	for _, t := range ch.settleTags(tag, multiple) {
		u := ch.unacked[t]
		delete(ch.unacked, t)
		if requeue {
			b.requeue(u.queue, u.delivery)
		} else {
			b.rejected = append(b.rejected, u.delivery)
		}
	}
	return nil
}

// Reject implements amqp.Acknowledger.
func (ch *Channel) Reject(tag uint64, requeue bool) error {
	return ch.Nack(tag, false, requeue)
}

// settleTags returns the unacked tags covered by tag/multiple in ascending order.
func (ch *Channel) settleTags(tag uint64, multiple bool) []uint64 {
	if !multiple {
		if _, ok := ch.unacked[tag]; ok {
			return []uint64{tag}
		}
		return nil
	}
	var tags []uint64
	for t := uint64(1); t <= tag; t++ {
		if _, ok := ch.unacked[t]; ok {
			tags = append(tags, t)
		}
	}
	return tags
}
