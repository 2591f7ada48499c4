package poster

import "context"

// Poster publishes an approved item. Implementations wrap whatever
// automation actually talks to the social platform.
type Poster interface {
	Post(ctx context.Context, imageRef, caption string) error
}
