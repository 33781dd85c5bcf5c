// Package effect is the side-effect surface available to update functions.
//
// Effects are fire and forget. Issuing one never blocks the update
// function; its outcome is turned into a message by the caller's handler and
// posted back into the program's queue, where it is processed like any other
// message. There is no cancellation. A request timeout resolves the request
// with ErrTimeout instead.
//
//	fx.HTTP(effect.Request{URL: "/api/todos", Timeout: 5 * time.Second},
//	    func(res effect.Result) vdom.Message { return Loaded{res} })
package effect
