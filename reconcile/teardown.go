package reconcile

import "context"

// Delete revokes the permission, unbinds the target and deletes the rule, in
// that order, so no target is ever left on a deleted rule. Resources that are
// already gone count as deleted.
func (r *Reconciler) Delete(ctx context.Context, res Resource) error {
	_, err := r.execute(ctx, Delete, res)
	return err
}
