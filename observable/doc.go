// Package observable provides the change-notification surface that statetrack
// trackers subscribe to.
//
// Go has no built-in property or collection change events, so tracked types opt in
// by exposing two small capabilities:
//
//   - PropertyNotifier: raised when a member of an object changes.
//   - CollectionNotifier: raised when items are added, removed, replaced, moved or
//     when the whole collection is reset.
//
// Every subscription returns a Subscription token whose Unsubscribe method detaches
// the handler. Handlers return errors; the error is handed back to the code that
// performed the mutation, which is how trackers reject illegal writes.
//
// # Notifying objects
//
// A tracked object is a pointer to a struct that embeds Notifier and writes its
// members through Set:
//
//	type Person struct {
//	    observable.Notifier
//	    Name string
//	    Age  int
//	}
//
//	func (p *Person) SetName(v string) error {
//	    return observable.Set(&p.Notifier, p, &p.Name, v, "Name")
//	}
//
// Exported fields are the object's members. A field tagged `statetrack:"-"` is not a
// member. Setter methods named Set<Member> are used by synchronizers when writing to
// a target object.
//
// # Notifying collections
//
// List is an ordered, index-addressable collection that raises collection change
// notifications for every mutation:
//
//	pets := observable.NewList[*Pet]()
//	if err := pets.Add(&Pet{Name: "Rex"}); err != nil {
//	    return err
//	}
//
// The zero value of Notifier and List is ready to use.
package observable
