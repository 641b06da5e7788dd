package notify

// MarkSubscribed flips the state Run sets once the subscription is confirmed.
func MarkSubscribed(f *Fanout) { f.subscribed.Store(true) }

// Dispatch feeds a raw channel message as if it arrived from Redis.
func Dispatch(f *Fanout, data string) { f.dispatch(data) }
