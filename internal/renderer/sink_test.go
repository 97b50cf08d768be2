package renderer

import "testing"

func TestLateSinkDropsEventsBeforeBind(t *testing.T) {
	sink := &LateSink{}
	sink.Emit(Event{Kind: EventPlay}) // no receiver yet

	var got []EventKind
	sink.Bind(func(ev Event) { got = append(got, ev.Kind) })
	sink.Emit(Event{Kind: EventPause})
	sink.Emit(Event{Kind: EventEnded})

	if len(got) != 2 || got[0] != EventPause || got[1] != EventEnded {
		t.Fatalf("delivered %v", got)
	}
}

func TestLateSinkRebind(t *testing.T) {
	sink := &LateSink{}
	var first, second int
	sink.Bind(func(Event) { first++ })
	sink.Emit(Event{Kind: EventPlay})
	sink.Bind(func(Event) { second++ })
	sink.Emit(Event{Kind: EventPlay})

	if first != 1 || second != 1 {
		t.Fatalf("first=%d second=%d", first, second)
	}
}
