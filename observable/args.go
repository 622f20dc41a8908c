package observable

import "strconv"

// PropertyChangedEventArgs describes a change to a single member of an object.
type PropertyChangedEventArgs struct {
	// PropertyName is the name of the changed member.
	// An empty name means any member may have changed.
	PropertyName string
}

// AllProperties reports whether the event refers to every member of the sender.
func (e PropertyChangedEventArgs) AllProperties() bool {
	return e.PropertyName == ""
}

// PropertyChangedHandler is called when a member of sender changes.
type PropertyChangedHandler func(sender any, e PropertyChangedEventArgs) error

// CollectionChangedAction identifies the kind of collection mutation.
type CollectionChangedAction int

const (
	// ActionAdd indicates items were inserted at NewIndex.
	ActionAdd CollectionChangedAction = iota

	// ActionRemove indicates items were removed at OldIndex.
	ActionRemove

	// ActionReplace indicates the item at NewIndex was replaced.
	ActionReplace

	// ActionMove indicates an item moved from OldIndex to NewIndex.
	ActionMove

	// ActionReset indicates the collection changed dramatically and must be re-read.
	ActionReset
)

// String returns the action name.
func (a CollectionChangedAction) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionReplace:
		return "replace"
	case ActionMove:
		return "move"
	case ActionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// CollectionChangedEventArgs describes a mutation of a collection.
type CollectionChangedEventArgs struct {
	Action CollectionChangedAction

	// NewIndex is the index of the first new item (Add, Replace, Move).
	// It is -1 when not applicable.
	NewIndex int

	// OldIndex is the index of the first old item (Remove, Replace, Move).
	// It is -1 when not applicable.
	OldIndex int

	// NewItems holds the inserted or replacing items.
	NewItems []any

	// OldItems holds the removed or replaced items.
	OldItems []any
}

// String renders the event for diagnostics.
func (e CollectionChangedEventArgs) String() string {
	switch e.Action {
	case ActionAdd:
		return "add[" + strconv.Itoa(e.NewIndex) + "]"
	case ActionRemove:
		return "remove[" + strconv.Itoa(e.OldIndex) + "]"
	case ActionReplace:
		return "replace[" + strconv.Itoa(e.NewIndex) + "]"
	case ActionMove:
		return "move[" + strconv.Itoa(e.OldIndex) + "->" + strconv.Itoa(e.NewIndex) + "]"
	default:
		return e.Action.String()
	}
}

// NewAddArgs returns args for items inserted at index.
func NewAddArgs(index int, items ...any) CollectionChangedEventArgs {
	return CollectionChangedEventArgs{Action: ActionAdd, NewIndex: index, OldIndex: -1, NewItems: items}
}

// NewRemoveArgs returns args for items removed at index.
func NewRemoveArgs(index int, items ...any) CollectionChangedEventArgs {
	return CollectionChangedEventArgs{Action: ActionRemove, NewIndex: -1, OldIndex: index, OldItems: items}
}

// NewReplaceArgs returns args for the item at index replaced by newItem.
func NewReplaceArgs(index int, oldItem, newItem any) CollectionChangedEventArgs {
	return CollectionChangedEventArgs{
		Action:   ActionReplace,
		NewIndex: index,
		OldIndex: index,
		NewItems: []any{newItem},
		OldItems: []any{oldItem},
	}
}

// NewMoveArgs returns args for item moved from one index to another.
func NewMoveArgs(from, to int, item any) CollectionChangedEventArgs {
	return CollectionChangedEventArgs{
		Action:   ActionMove,
		NewIndex: to,
		OldIndex: from,
		NewItems: []any{item},
		OldItems: []any{item},
	}
}

// NewResetArgs returns args for a reset.
func NewResetArgs() CollectionChangedEventArgs {
	return CollectionChangedEventArgs{Action: ActionReset, NewIndex: -1, OldIndex: -1}
}

// CollectionChangedHandler is called when sender's items change.
type CollectionChangedHandler func(sender any, e CollectionChangedEventArgs) error
