package report

// htmlTemplate is the report page. It is self-contained: no external scripts
// or stylesheets are loaded.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Report</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        .header, .section {
            background: var(--bg-primary);
            border-radius: 12px;
            padding: 1.5rem 2rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
        }

        .header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        .header h1 { font-size: 1.75rem; }
        .meta { display: flex; gap: 2rem; font-size: 0.875rem; color: var(--text-secondary); flex-wrap: wrap; }

        .status { padding: 0.75rem 1.5rem; border-radius: 8px; font-weight: 600; }
        .status.pass { background: rgba(34, 197, 94, 0.1); color: var(--accent-success); }
        .status.fail { background: rgba(239, 68, 68, 0.1); color: var(--accent-error); }

        .metrics-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; margin-bottom: 1.5rem; }
        .metric-card { background: var(--bg-primary); border-radius: 12px; padding: 1.25rem; box-shadow: var(--shadow); }
        .metric-card .label { font-size: 0.8rem; color: var(--text-secondary); text-transform: uppercase; }
        .metric-card .value { font-size: 1.6rem; font-weight: 700; }

        .section-title { font-size: 1.15rem; font-weight: 600; margin-bottom: 1rem; }

        .stats-table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        .stats-table th, .stats-table td { padding: 0.5rem 0.75rem; text-align: right; border-bottom: 1px solid var(--border-color); }
        .stats-table th:first-child, .stats-table td:first-child { text-align: left; }
        .stats-table th { color: var(--text-secondary); font-weight: 600; }

        .pass { color: var(--accent-success); }
        .fail { color: var(--accent-error); }
        .warn { color: var(--accent-warning); }

        .footer { text-align: center; font-size: 0.8rem; color: var(--text-secondary); padding: 1rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <div>
            <h1>{{.Name}}</h1>
            <div class="meta">
                <span>Target: {{.BaseURL}}</span>
                <span>Started: {{.Start.Format "2006-01-02 15:04:05"}}</span>
                <span>Duration: {{formatDuration .Duration}}</span>
                <span>Run: {{.RunID}}</span>
                {{if .GroupID}}<span>Test group: {{.GroupID}}</span>{{end}}
            </div>
        </div>
        <div class="status {{if .Passed}}pass{{else}}fail{{end}}">
            {{if .Passed}}✓ PASSED{{else}}✗ FAILED{{end}}
        </div>
    </div>

    {{if .Interrupted}}
    <div class="section warn">⚠ The run was interrupted before the schedule ended.</div>
    {{end}}

    <div class="metrics-grid">
        {{with .Executor}}
        <div class="metric-card"><div class="label">Iterations</div><div class="value">{{formatNumber .Iterations}}</div></div>
        <div class="metric-card"><div class="label">Max VUs</div><div class="value">{{.MaxVUs}}</div></div>
        {{end}}
        {{with metricSummary .Snapshot "http_reqs"}}
        <div class="metric-card"><div class="label">Requests</div><div class="value">{{formatNumber (int64 .Sum)}}</div></div>
        <div class="metric-card"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .Rate}} req/s</div></div>
        {{end}}
        {{with metricSummary .Snapshot "error_rate"}}
        <div class="metric-card"><div class="label">Error Rate</div><div class="value">{{percent .Rate}}</div></div>
        {{end}}
        {{with metricSummary .Snapshot "http_req_duration"}}
        <div class="metric-card"><div class="label">P95 Duration</div><div class="value">{{formatMillis .P95}}</div></div>
        {{end}}
    </div>

    {{if .Thresholds}}
    <div class="section">
        <div class="section-title">Thresholds</div>
        <table class="stats-table">
            <thead><tr><th>Metric</th><th>Expression</th><th>Observed</th><th>Result</th></tr></thead>
            <tbody>
            {{range .Thresholds}}
            <tr>
                <td>{{.Metric}}</td>
                <td>{{.Expression}}</td>
                <td>{{metric $.Snapshot .Metric .Observed}}{{if .Message}}<br><small class="fail">{{.Message}}</small>{{end}}</td>
                <td class="{{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .Trends}}
    <div class="section">
        <div class="section-title">Latency (ms)</div>
        <table class="stats-table">
            <thead><tr><th>Metric</th><th>Count</th><th>Min</th><th>Avg</th><th>Med</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr></thead>
            <tbody>
            {{range .Trends}}
            <tr>
                <td>{{.Name}}</td>
                <td>{{formatNumber .Count}}</td>
                <td>{{formatMillis .Min}}</td>
                <td>{{formatMillis .Avg}}</td>
                <td>{{formatMillis .Med}}</td>
                <td>{{formatMillis .P90}}</td>
                <td>{{formatMillis .P95}}</td>
                <td>{{formatMillis .P99}}</td>
                <td>{{formatMillis .Max}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if or .Rates .Counters}}
    <div class="section">
        <div class="section-title">Rates and Counters</div>
        <table class="stats-table">
            <thead><tr><th>Metric</th><th>Type</th><th>Count</th><th>Value</th></tr></thead>
            <tbody>
            {{range .Rates}}
            <tr><td>{{.Name}}</td><td>rate</td><td>{{formatNumber .Count}}</td><td>{{percent .Rate}} ({{.Passes}} / {{.Count}})</td></tr>
            {{end}}
            {{range .Counters}}
            <tr><td>{{.Name}}</td><td>counter</td><td>{{formatNumber (int64 .Sum)}}</td><td>{{printf "%.2f" .Rate}}/s</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .Checks}}
    <div class="section">
        <div class="section-title">Checks</div>
        <table class="stats-table">
            <thead><tr><th>Check</th><th>Passes</th><th>Fails</th></tr></thead>
            <tbody>
            {{range .Checks}}
            <tr>
                <td class="{{if .Fails}}fail{{else}}pass{{end}}">{{if .Fails}}✗{{else}}✓{{end}} {{.Name}}</td>
                <td>{{formatNumber .Passes}}</td>
                <td>{{formatNumber .Fails}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .TimeSeries}}
    <div class="section">
        <div class="section-title">Time Series</div>
        <table class="stats-table" id="time-series">
            <thead><tr><th>Time</th><th>Phase</th><th>VUs</th><th>Requests</th><th>RPS</th><th>Error Rate</th><th>P95 Duration</th></tr></thead>
            <tbody>
            {{range .TimeSeries}}
            <tr>
                <td>+{{offset $.Start .Timestamp}}</td>
                <td>{{.Phase}}</td>
                <td>{{.ActiveVUs}}</td>
                <td>{{formatNumber .IntervalRequests}}</td>
                <td>{{printf "%.1f" .IntervalRPS}}</td>
                <td>{{percent .IntervalErrorRate}}</td>
                <td>{{formatMillis .DurationP95}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    <div class="footer">
        <p>Generated by tripload • {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
    </div>
</div>
<script type="application/json" id="time-series-data">{{.TimeSeriesJSON}}</script>
</body>
</html>
`
