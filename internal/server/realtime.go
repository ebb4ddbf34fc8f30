package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventLessonSaved = "lesson-saved"
	realtimeSourceBackend    = "lessonforge-backend"
)

type RealtimeMessage struct {
	ScopeID   string
	LessonID  string
	EventType string
	BlockIDs  []string
	Timestamp time.Time
}

// RealtimeDispatcher fans saved-lesson notifications out to every open
// event stream for that lesson. Slow subscribers drop messages rather
// than blocking the publisher.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[lessonChannel]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type lessonChannel struct {
	scopeID  string
	lessonID string
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[lessonChannel]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, scopeID, lessonID string) (<-chan RealtimeMessage, func()) {
	if scopeID == "" || lessonID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	channel := lessonChannel{scopeID: scopeID, lessonID: lessonID}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(channel, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(channel, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.ScopeID == "" || message.LessonID == "" || message.EventType == "" {
		return
	}
	channel := lessonChannel{scopeID: message.ScopeID, lessonID: message.LessonID}
	d.mu.RLock()
	subscribers := d.subscribers[channel]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(channel lessonChannel, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[channel]; !ok {
		d.subscribers[channel] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[channel][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(channel lessonChannel, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[channel]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, channel)
		}
	}
	d.mu.Unlock()
}
