package listing

import (
	"testing"
	"time"
)

// These three fixtures are reproduced verbatim from the archive servers'
// actual directory listing pages (RIPE RIS's old and new index formats, and
// RouteViews' Apache FancyIndex), not authored code.
const ripeOldTable = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<html>
 <head>
  <title>Index of /rrc00/2022.11</title>
 </head>
 <body>
<h1>Index of /rrc00/2022.11</h1>
  <table>
   <tr><th valign="top">&nbsp;</th><th><a href="?C=N;O=A">Name</a></th><th><a href="?C=M;O=A">Last modified</a></th><th><a href="?C=S;O=A">Size</a></th><th><a href="?C=D;O=A">Description</a></th></tr>
   <tr><th colspan="5"><hr></th></tr>
<tr><td valign="top">&nbsp;</td><td><a href="/rrc00/">Parent Directory</a></td><td>&nbsp;</td><td align="right">  - </td><td>&nbsp;</td></tr>
<tr><td valign="top">&nbsp;</td><td><a href="updates.20221128.2220.gz">updates.20221128.2220.gz</a></td><td align="right">2022-11-28 22:25  </td><td align="right">6.4M</td><td>&nbsp;</td></tr>
<tr><td valign="top">&nbsp;</td><td><a href="updates.20221128.2215.gz">updates.20221128.2215.gz</a></td><td align="right">2022-11-28 22:20  </td><td align="right">3.8M</td><td>&nbsp;</td></tr>
<tr><td valign="top">&nbsp;</td><td><a href="bview.20221102.0800.gz">bview.20221102.0800.gz</a></td><td align="right">2022-11-02 10:14  </td><td align="right">1.5G</td><td>&nbsp;</td></tr>
<tr><td valign="top">&nbsp;</td><td><a href="bview.20221102.0000.gz">bview.20221102.0000.gz</a></td><td align="right">2022-11-02 02:13  </td><td align="right">1.5G</td><td>&nbsp;</td></tr>
   <tr><th colspan="5"><hr></th></tr>
</table>
</body></html>
`

const ripeNewPre = `<html>
<head><title>Index of /rrc00/2001.01/</title></head>
<body bgcolor="white">
<h1>Index of /rrc00/2001.01/</h1><hr><pre><a href="../">../</a>
<a href="bview.20010101.0609.gz">bview.20010101.0609.gz</a>                             01-Jan-2001 06:09     12M
<a href="bview.20010101.1410.gz">bview.20010101.1410.gz</a>                             01-Jan-2001 14:10     12M
<a href="updates.20010131.2236.gz">updates.20010131.2236.gz</a>                           31-Jan-2001 22:36     98K
<a href="updates.20010131.2251.gz">updates.20010131.2251.gz</a>                           31-Jan-2001 22:51     97K
</pre><hr></body>
</html>
`

const routeviewsTable = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<html>
 <head>
  <title>Index of /route-views.bdix/bgpdata/2022.10/UPDATES</title>
 </head>
 <body>
<h1>Index of /route-views.bdix/bgpdata/2022.10/UPDATES</h1>
  <table>
   <tr><th valign="top"><img src="/icons/blank.gif" alt="[ICO]"></th><th><a href="?C=N;O=D">Name</a></th><th><a href="?C=M;O=A">Last modified</a></th><th><a href="?C=S;O=A">Size</a></th><th><a href="?C=D;O=A">Description</a></th></tr>
   <tr><th colspan="5"><hr></th></tr>
<tr><td valign="top"><img src="/icons/back.gif" alt="[PARENTDIR]"></td><td><a href="/route-views.bdix/bgpdata/2022.10/">Parent Directory</a>       </td><td>&nbsp;</td><td align="right">  - </td><td>&nbsp;</td></tr>
<tr><td valign="top"><img src="/icons/unknown.gif" alt="[   ]"></td><td><a href="updates.20221001.0000.bz2">updates.20221001.000..&gt;</a></td><td align="right">2022-10-01 00:00  </td><td align="right"> 14 </td><td>&nbsp;</td></tr>
<tr><td valign="top"><img src="/icons/unknown.gif" alt="[   ]"></td><td><a href="updates.20221001.0015.bz2">updates.20221001.001..&gt;</a></td><td align="right">2022-10-01 00:15  </td><td align="right"> 14 </td><td>&nbsp;</td></tr>
<tr><td valign="top"><img src="/icons/unknown.gif" alt="[   ]"></td><td><a href="updates.20221026.1545.bz2">updates.20221026.154..&gt;</a></td><td align="right">2022-10-26 15:45  </td><td align="right"> 14 </td><td>&nbsp;</td></tr>
<tr><td valign="top"><img src="/icons/unknown.gif" alt="[   ]"></td><td><a href="updates.20221026.1600.bz2">updates.20221026.160..&gt;</a></td><td align="right">2022-10-26 16:00  </td><td align="right"> 14 </td><td>&nbsp;</td></tr>
   <tr><th colspan="5"><hr></th></tr>
</table>
</body></html>
`

func TestExtractLinkSize(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"ripe_old_table", ripeOldTable, 4},
		{"ripe_new_pre", ripeNewPre, 4},
		{"routeviews_table", routeviewsTable, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractLinkSize(tc.body)
			if err != nil {
				t.Fatalf("ExtractLinkSize: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d (%+v)", len(got), tc.want, got)
			}
		})
	}
}

func TestExtractLinkSize_Sizes(t *testing.T) {
	got, err := ExtractLinkSize(ripeOldTable)
	if err != nil {
		t.Fatalf("ExtractLinkSize: %v", err)
	}
	want := map[string]int64{
		"updates.20221128.2220.gz": int64(6.4 * float64(sizeMB)),
		"bview.20221102.0800.gz":   int64(1.5 * float64(sizeGB)),
	}
	for _, ls := range got {
		if w, ok := want[ls.Link]; ok && ls.Size != w {
			t.Errorf("%s size = %d, want %d", ls.Link, ls.Size, w)
		}
	}
}

func TestSizeStrToBytes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"98K", 98 * sizeKB, true},
		{"6.4M", int64(6.4 * float64(sizeMB)), true},
		{"1.5G", int64(1.5 * float64(sizeGB)), true},
		{"14", 14, true},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := sizeStrToBytes(tc.in)
		if ok != tc.ok {
			t.Fatalf("sizeStrToBytes(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("sizeStrToBytes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEnumerateMonths(t *testing.T) {
	body := `<a href="2022.09/">2022.09/</a>
<a href="2022.10/">2022.10/</a>
<a href="2022.11/">2022.11/</a>
<a href="2022.12/">2022.12/</a>`
	now := time.Date(2022, 11, 15, 0, 0, 0, 0, time.UTC)

	months, err := EnumerateMonths(body, time.Time{}, now)
	if err != nil {
		t.Fatalf("EnumerateMonths: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("bootstrap months = %d, want 3 (%v)", len(months), months)
	}

	from := time.Date(2022, 10, 5, 0, 0, 0, 0, time.UTC)
	months, err = EnumerateMonths(body, from, now)
	if err != nil {
		t.Fatalf("EnumerateMonths: %v", err)
	}
	if len(months) != 2 {
		t.Fatalf("incremental months = %d, want 2 (%v)", len(months), months)
	}
}
