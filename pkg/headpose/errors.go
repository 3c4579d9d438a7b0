package headpose

import "errors"

// ErrPoseSolve is returned when the pose cannot be recovered from the landmarks:
// the solver did not converge, produced a non-finite or behind-camera result,
// or the required landmarks were missing.
var ErrPoseSolve = errors.New("head pose solve failed")
