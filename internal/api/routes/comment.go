package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"Remark/internal/api/handlers/comments"
	commentsCore "Remark/internal/core/comments"
)

// RegisterCommentRoutes registers the comment CRUD, listing, tree and
// streaming endpoints on the router. Paths keep their historical trailing
// slashes; limit and last_id are optional path segments, so each arity is
// its own route.
func RegisterCommentRoutes(r chi.Router, service commentsCore.Service) {
	createHandler := comments.NewCreateCommentHandler(service)
	getHandler := comments.NewGetCommentHandler(service)
	updateHandler := comments.NewUpdateCommentHandler(service)
	deleteHandler := comments.NewDeleteCommentHandler(service)
	listHandler := comments.NewListCommentsHandler(service)
	treeHandler := comments.NewTreeCommentsHandler(service)
	streamHandler := comments.NewStreamCommentsHandler(service)

	r.Put("/api/comment/", createHandler.HandleCreate)
	r.Get("/api/comment/{id}/", getHandler.HandleGet)
	r.Post("/api/comment/{id}/", updateHandler.HandleUpdate)
	r.Delete("/api/comment/{id}/", deleteHandler.HandleDelete)

	r.Get("/api/comments/list/{i_id}/{itype_id}/", listHandler.HandleList)
	r.Get("/api/comments/list/{i_id}/{itype_id}/{limit}/", listHandler.HandleList)
	r.Get("/api/comments/list/{i_id}/{itype_id}/{limit}/{last_id}/", listHandler.HandleList)

	r.Get("/api/comments/tree/{i_id}/", treeHandler.HandleTree)
	r.Get("/api/comments/tree/{i_id}/{itype_id}/", treeHandler.HandleTree)
	r.Get("/api/comments/branch/{i_id}/", treeHandler.HandleBranch)
	r.Get("/api/comments/branch/{i_id}/{itype_id}/", treeHandler.HandleBranch)

	// stream endpoints are consumed straight from browsers on other origins
	streamCORS := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	})

	r.With(streamCORS).Get("/api/comments/stream/tree/{i_id}/", streamHandler.HandleStreamTree)
	r.With(streamCORS).Get("/api/comments/stream/tree/{i_id}/{itype_id}/", streamHandler.HandleStreamTree)
	r.With(streamCORS).Get("/api/comments/stream/user/{user_id}/", streamHandler.HandleStreamUser)
}
