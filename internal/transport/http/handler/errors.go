package handler

const (
	errInternalServer  = "Internal server error"
	errSearchNotFound  = "Search not found"
	errAlreadyFinished = "Search already finished"
	errNotOwner        = "Search belongs to another client"
	errArchiveDisabled = "Search history is not available on this deployment"
)
