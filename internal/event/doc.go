// Package event is the internal publish/subscribe store feature modules use
// instead of the host's native event API.
//
// Subscribers register a Handler under a canonical event name; dispatch
// invokes every handler subscribed to that name synchronously, in
// subscription order. There are no priorities, filters or async delivery.
//
// # Failure isolation
//
// Each handler runs through a dispatch.Executor. An error or panic is
// logged with the subscription's id, label and the event name, counted,
// and reported in the Outcome; the remaining handlers still run and the
// failing handler stays subscribed.
//
// # Unsubscribing
//
// Go function values are not comparable, so a Subscription (or its id) is
// the identity used to unsubscribe. OffHandler exists for handlers of a
// comparable type such as a pointer receiver. Unsubscribing never affects a
// dispatch already in progress.
//
// # Usage
//
//	reg := event.NewRegistry(event.WithLogger(logger))
//	sub, err := reg.OnFunc("actorCreated", func(ctx context.Context, ev event.Event) error {
//	    doc := ev.Arg(0)
//	    ...
//	    return nil
//	}, event.WithLabel("token-bars"))
//	...
//	sub.Unsubscribe()
package event
