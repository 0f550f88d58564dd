package reconcile

import "context"

// Create grants the rule permission to invoke the function, then upserts the
// rule, then binds the function as its target.
func (r *Reconciler) Create(ctx context.Context, res Resource) (Result, error) {
	return r.execute(ctx, Create, res)
}

// Update overwrites the rule and the target with the full desired state. The
// permission granted on Create is left alone.
func (r *Reconciler) Update(ctx context.Context, res Resource) (Result, error) {
	return r.execute(ctx, Update, res)
}
