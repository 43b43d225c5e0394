// handlers/site.go
package handlers

import (
	"conference-portal/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSiteRoutes(app *fiber.App, siteService *services.SiteService) {
	app.Get("/site", siteService.GetSite)
	app.Get("/site/agenda", siteService.GetAgenda)
	app.Get("/site/speakers", siteService.GetSpeakers)
	app.Get("/site/speakers/:slug", siteService.GetSpeaker)
	app.Get("/site/partners", siteService.GetPartners)
	app.Get("/site/faq", siteService.GetFAQ)
	app.Get("/pattern/:seed", siteService.GetPattern)
}
