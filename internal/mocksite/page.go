package mocksite

import "html/template"

type pageState struct {
	LoginVisible   bool
	DialogOpen     bool
	TriggerPresent bool
	TriggerWired   bool
	Message        string
}

// The markup mirrors the structure the selectors in appconfig expect. Styles
// stay inline so no selector class ever appears as stylesheet text.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Video Studio</title>
</head>
<body style="font-family: sans-serif; margin: 40px">
{{if .LoginVisible}}
<button class="loginButton___KvHTz" style="padding: 10px 20px" onclick="markLogin()">Sign in</button>
{{else}}
<div class="right___xiLco" style="width: 320px; padding: 12px; border: 1px solid #ccc">
  <div class="inviteReward___HHLBu" style="padding: 8px; background: #eee">Invite friends, earn credits</div>
  {{if .TriggerPresent}}
  <div style="display: flex; padding: 10px; background: gold; cursor: pointer"{{if .TriggerWired}} onclick="openDialog()"{{end}}>Daily reward</div>
  {{end}}
</div>
<div id="checkin-dialog" role="dialog" class="modal-checkIn___mock" style="display: {{if .DialogOpen}}block{{else}}none{{end}}; position: fixed; top: 20%; left: 30%; width: 320px; padding: 24px; background: white; border: 2px solid #333">
  <div class="content___mock" style="margin-bottom: 16px">{{.Message}}</div>
  <button class="aae-ant-btn aae-ant-btn-primary" style="padding: 8px 16px; background: #16c; color: white" onclick="claimReward()">Claim</button>
</div>
{{end}}
<script>
function markLogin() {
  document.body.setAttribute('data-login', '1');
}
function openDialog() {
  document.getElementById('checkin-dialog').style.display = 'block';
}
function claimReward() {
  fetch('api/claim', {method: 'POST'}).then(function () {
    document.getElementById('checkin-dialog').style.display = 'none';
    document.body.setAttribute('data-claimed', '1');
  });
}
</script>
</body>
</html>
`))
