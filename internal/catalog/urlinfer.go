package catalog

import (
	"fmt"
	"time"

	"github.com/bgpdata/archivist/internal/model"
)

// InferURL reconstructs a file's canonical URL and ts_end from its
// collector, ts_start and data type. Both backends store only the
// timestamp and a collector reference per file row (not the URL), so the
// URL is rebuilt on read the same way db/utils.rs's infer_url does.
func InferURL(collector model.Collector, tsStart time.Time, dataType model.DataType) (url string, tsEnd time.Time) {
	y, m, d := tsStart.Date()
	hh, mm, _ := tsStart.Clock()

	switch collector.Project {
	case model.ProjectRouteViews:
		if dataType == model.DataTypeRIB {
			return fmt.Sprintf("%s/bgpdata/%04d.%02d/RIBS/rib.%04d%02d%02d.%02d%02d.bz2",
				collector.URL, y, m, y, m, d, hh, mm), tsStart
		}
		return fmt.Sprintf("%s/bgpdata/%04d.%02d/UPDATES/updates.%04d%02d%02d.%02d%02d.bz2",
			collector.URL, y, m, y, m, d, hh, mm), tsStart.Add(time.Duration(collector.UpdatesIntervalSeconds) * time.Second)
	case model.ProjectRIPERIS:
		if dataType == model.DataTypeRIB {
			return fmt.Sprintf("%s/%04d.%02d/bview.%04d%02d%02d.%02d%02d.gz",
				collector.URL, y, m, y, m, d, hh, mm), tsStart
		}
		return fmt.Sprintf("%s/%04d.%02d/updates.%04d%02d%02d.%02d%02d.gz",
			collector.URL, y, m, y, m, d, hh, mm), tsStart.Add(time.Duration(collector.UpdatesIntervalSeconds) * time.Second)
	default:
		return "", tsStart
	}
}
