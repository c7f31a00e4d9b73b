package report

// HTMLTemplate renders a Report.
const HTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 40px; }
    h1 { color: #333; }
    .summary { background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0; }
    .stat { display: inline-block; margin: 10px 20px 10px 0; }
    .stat .value { font-size: 32px; font-weight: bold; }
    .stat .label { color: #666; }
    .pass { color: #28a745; }
    .fail { color: #dc3545; }
    .flaky { color: #f59e0b; }
    table { width: 100%; border-collapse: collapse; margin-top: 20px; }
    th, td { text-align: left; padding: 12px; border-bottom: 1px solid #ddd; vertical-align: top; }
    th { background-color: #f8f9fa; font-weight: 600; }
    .status-pass { color: #28a745; font-weight: bold; }
    .status-fail { color: #dc3545; font-weight: bold; }
    .status-flaky { color: #f59e0b; font-weight: bold; }
    .status-skipped { color: #6b7280; font-weight: bold; }
    pre { white-space: pre-wrap; margin: 0; font-size: 12px; color: #555; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>

  <div class="summary">
    <h2>Summary</h2>
    <div class="stat"><div class="value">{{.Summary.Total}}</div><div class="label">Total Tests</div></div>
    <div class="stat"><div class="value pass">{{.Summary.Passed}}</div><div class="label">Passed</div></div>
    <div class="stat"><div class="value fail">{{.Summary.Failed}}</div><div class="label">Failed</div></div>
    {{- if gt .Summary.Flaky 0}}
    <div class="stat"><div class="value flaky">{{.Summary.Flaky}}</div><div class="label">Flaky</div></div>
    {{- end}}
    {{- if gt .Summary.Skipped 0}}
    <div class="stat"><div class="value">{{.Summary.Skipped}}</div><div class="label">Skipped</div></div>
    {{- end}}
    <div class="stat"><div class="value">{{printf "%.1f" .Summary.PassRate}}%</div><div class="label">Success Rate</div></div>
    <div class="stat"><div class="value">{{seconds .Summary.Duration}}</div><div class="label">Duration</div></div>
  </div>

  <p><strong>Generated:</strong> {{.Generated.Format "2006-01-02 15:04:05 MST"}}</p>

  <h2>Test Results</h2>
  <table>
    <thead>
      <tr>
        <th>Test Case</th>
        <th>Suite</th>
        <th>Status</th>
        <th>Duration</th>
        <th>Details</th>
      </tr>
    </thead>
    <tbody>
    {{- range .Rows}}
      <tr>
        <td>{{.Title}}</td>
        <td>{{.Suite}}</td>
        <td class="status-{{statusClass .Status}}">{{statusLabel .Status}}</td>
        <td>{{seconds .Duration}}</td>
        <td>{{if .Cause}}<strong>{{.Cause}}</strong>{{end}}{{if .Error}}<pre>{{truncate .Error 500}}</pre>{{end}}</td>
      </tr>
    {{- else}}
      <tr><td colspan="5">No tests were run.</td></tr>
    {{- end}}
    </tbody>
  </table>
</body>
</html>
`
