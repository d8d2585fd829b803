package catalog

import "github.com/bgpdata/archivist/internal/model"

// DefaultCollectors is a representative subset of the bundled collector
// configuration (the full list runs to roughly 70 entries across both
// projects; see collector.rs's DEFAULT_COLLECTORS_CONFIG for the complete
// set). New deployments insert these via InsertCollector on first run; any
// collector already present in storage is left untouched.
var DefaultCollectors = []model.Collector{
	{ID: "rrc00", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc00", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc01", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc01", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc03", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc03", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc04", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc04", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc05", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc05", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc10", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc10", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc11", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc11", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc12", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc12", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc13", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc13", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc14", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc14", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc15", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc15", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc16", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc16", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc19", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc19", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc20", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc20", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc21", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc21", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc23", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc23", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc24", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc24", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc25", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc25", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},
	{ID: "rrc26", Project: model.ProjectRIPERIS, URL: "https://data.ris.ripe.net/rrc26", UpdatesIntervalSeconds: model.ProjectRIPERIS.UpdatesInterval()},

	{ID: "route-views2", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views3", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views3/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views4", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views4/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views5", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views5/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views6", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views6/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "amsix.ams", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/amsix.ams/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "pacwave.lax", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/pacwave.lax/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views.chicago", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views.chicago/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "route-views.sydney", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/route-views.sydney/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
	{ID: "decix.jhb", Project: model.ProjectRouteViews, URL: "https://archive.routeviews.org/decix.jhb/bgpdata", UpdatesIntervalSeconds: model.ProjectRouteViews.UpdatesInterval()},
}
