// Package domain models accumulated precipitation from WRF model output and
// derives rain rate from it.
//
// # Data Source
//
// Input fields come from a single WRF history file (wrfout_d0N_YYYY-MM-DD_HH:MM:SS),
// written by the WRF ARW model as classic NetCDF. The adapter layer reads the
// variables named below and hands them to this package as dense arrays.
//
// # WRF Conventions
//
// Precipitation:
//
//	RAINC   accumulated convective precipitation, mm, dims (Time, south_north, west_east)
//	RAINNC  accumulated grid-scale (non-convective) precipitation, mm, same dims
//
//	Both are running totals since model start. Within one file they never reset
//	(bucket_mm is assumed disabled), so the total is non-decreasing along Time.
//	Their sum is the total accumulated precipitation.
//
// Time:
//
//	Times   char[Time][19], "2006-01-02_15:04:05" in UTC.
//	XTIME   minutes since the simulation start given in its "units" attribute;
//	        used when Times is absent.
//	Output intervals may be irregular (restarts, changed history_interval), so
//	every interval is measured from the timestamps rather than assumed.
//
// Grid:
//
//	XLAT, XLONG  cell-centre latitude/longitude, dims (Time, south_north, west_east)
//	             or (south_north, west_east). The horizontal grid of a WRF domain is
//	             static, so only time index 0 is read. This is a precondition of the
//	             input format and is not validated.
//
// # Rain Rate
//
// For N input steps the rate field has N-1 steps:
//
//	rate[i] = (total[i+1] - total[i]) / hours(t[i+1] - t[i])    mm/h
//
// Entry i is the mean rate over the interval between source steps i and i+1 and is
// labelled with the interval end time t[i+1]. The one-dimensional interval vector is
// broadcast over every grid cell of its step. See [DeriveRate].
package domain
