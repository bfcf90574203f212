package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"tolkback/internal/models"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	customerMiddleware := standardMiddleware.Append(app.requireRole(models.RoleCustomer))
	translatorMiddleware := standardMiddleware.Append(app.requireRole(models.RoleTranslator))
	adminMiddleware := standardMiddleware.Append(app.requireRole(models.RoleAdmin))

	mux := pat.New()

	// Bookings
	mux.Post("/booking", customerMiddleware.ThenFunc(app.bookingHandler.CreateBooking))
	mux.Get("/booking/:id", customerMiddleware.ThenFunc(app.bookingHandler.GetBooking))
	mux.Put("/booking/:id", adminMiddleware.ThenFunc(app.bookingHandler.UpdateBooking))
	mux.Post("/booking/:id/accept", translatorMiddleware.ThenFunc(app.bookingHandler.AcceptBooking))
	mux.Post("/booking/:id/cancel", customerMiddleware.ThenFunc(app.bookingHandler.CancelBookingCustomer))
	mux.Post("/booking/:id/cancel_translator", translatorMiddleware.ThenFunc(app.bookingHandler.CancelBookingTranslator))
	mux.Post("/booking/:id/end", customerMiddleware.ThenFunc(app.bookingHandler.EndBooking))
	mux.Post("/booking/:id/customer_not_call", translatorMiddleware.ThenFunc(app.bookingHandler.CustomerNotCall))
	mux.Post("/booking/:id/reopen", adminMiddleware.ThenFunc(app.bookingHandler.ReopenBooking))
	mux.Post("/booking/:id/notify_sms", adminMiddleware.ThenFunc(app.bookingHandler.NotifySMS))

	// Translator views
	mux.Get("/translator/:id/potential_jobs", translatorMiddleware.ThenFunc(app.bookingHandler.PotentialJobs))

	// Device tokens for push delivery
	mux.Post("/notify/token", standardMiddleware.ThenFunc(app.tokenHandler.CreateToken))
	mux.Del("/notify/token/:token", standardMiddleware.ThenFunc(app.tokenHandler.DeleteToken))

	return mux
}
